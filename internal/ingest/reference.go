package ingest

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"htmlvault/internal/model"
)

// A scheme needs at least two characters so Windows drive letters stay paths.
var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]+:`)

var (
	imageExts = extSet("jpg", "jpeg", "png", "gif", "svg", "webp")
	videoExts = extSet("mp4", "webm", "avi", "mov")
	audioExts = extSet("mp3", "wav", "ogg", "aac", "opus", "m4a")
	htmlExts  = extSet("html", "htm")
)

// referenceRule describes one category of media reference.
// Rules run in slice order, which fixes the order of Result.Media.
type referenceRule struct {
	selector string
	attr     string
	classify func(ref string) (model.MediaType, bool)
}

var referenceRules = []referenceRule{
	{selector: "img", attr: "src", classify: fixedType(model.MediaImage)},
	{selector: "video source", attr: "src", classify: fixedType(model.MediaVideo)},
	{selector: "audio source", attr: "src", classify: fixedType(model.MediaAudio)},
	{selector: "a", attr: "href", classify: classifyLink},
}

func fixedType(t model.MediaType) func(string) (model.MediaType, bool) {
	return func(ref string) (model.MediaType, bool) {
		if !isLocalReference(ref) {
			return "", false
		}
		return t, true
	}
}

// classifyLink types an anchor target by its extension.
// Links to other HTML pages and in-page fragments are not media.
func classifyLink(ref string) (model.MediaType, bool) {
	if !isLocalReference(ref) || strings.HasPrefix(strings.TrimSpace(ref), "#") {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(referencePath(ref)))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(strings.TrimSpace(ref)))
	}
	switch {
	case htmlExts[ext]:
		return "", false
	case imageExts[ext]:
		return model.MediaImage, true
	case videoExts[ext]:
		return model.MediaVideo, true
	case audioExts[ext]:
		return model.MediaAudio, true
	default:
		return model.MediaOther, true
	}
}

// isLocalReference reports whether ref may point at a file on disk:
// non-empty, and neither network-absolute nor carrying a non-file URL scheme.
func isLocalReference(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "//") {
		return false
	}
	if m := schemeRe.FindString(ref); m != "" {
		return strings.EqualFold(m, "file:")
	}
	return true
}

// referencePath extracts the filesystem path part of ref: file URLs are
// unwrapped, escapes decoded, and any query or fragment dropped. Values that
// do not parse as URLs are used verbatim.
func referencePath(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if strings.EqualFold(u.Scheme, "file") || (u.Scheme == "" && u.Host == "") {
		if u.Path != "" {
			return u.Path
		}
	}
	return ref
}

// resolvePath maps ref onto the filesystem. Absolute paths are used as-is;
// anything else is relative to baseDir.
func resolvePath(ref, baseDir string) string {
	return joinBase(referencePath(ref), baseDir)
}

// candidatePaths lists where the file behind ref may live, the literal
// reference first and its decoded form second. A file named "a#1.jpg"
// only matches the literal form.
func candidatePaths(ref, baseDir string) []string {
	literal := joinBase(strings.TrimSpace(ref), baseDir)
	decoded := resolvePath(ref, baseDir)
	if literal == decoded {
		return []string{literal}
	}
	return []string{literal, decoded}
}

func joinBase(ref, baseDir string) string {
	p := filepath.FromSlash(ref)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

// withinDir reports whether path is dir or lies below it.
func withinDir(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func extSet(exts ...string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set["."+e] = true
	}
	return set
}

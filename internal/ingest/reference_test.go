package ingest

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"htmlvault/internal/model"
)

func TestClassifyLink(t *testing.T) {
	tests := []struct {
		href   string
		want   model.MediaType
		wantOK bool
	}{
		{"photo.JPEG", model.MediaImage, true},
		{"img/logo.svg", model.MediaImage, true},
		{"clip.webm", model.MediaVideo, true},
		{"movie.avi?dl=1", model.MediaVideo, true},
		{"voice.aac", model.MediaAudio, true},
		{"PTT-20240101.opus", model.MediaAudio, true},
		{"report.pdf", model.MediaOther, true},
		{"README", model.MediaOther, true},
		{"a#1.jpg", model.MediaImage, true},
		{"page.html", "", false},
		{"PAGE.HTM", "", false},
		{"page.html#section", "", false},
		{"#message-42", "", false},
		{"https://example.com/a.png", "", false},
		{"http://example.com", "", false},
		{"//cdn.example.com/a.mp3", "", false},
		{"mailto:bob@example.com", "", false},
		{"tel:+123", "", false},
		{"", "", false},
		{"   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := classifyLink(tt.href)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsLocalReference(t *testing.T) {
	assert.True(t, isLocalReference("photo.jpg"))
	assert.True(t, isLocalReference("../media/photo.jpg"))
	assert.True(t, isLocalReference("/var/export/photo.jpg"))
	assert.True(t, isLocalReference("file:///var/export/photo.jpg"))
	assert.True(t, isLocalReference(`C:\export\photo.jpg`))
	assert.False(t, isLocalReference("HTTPS://example.com/x.jpg"))
	assert.False(t, isLocalReference("data:image/png;base64,AAAA"))
}

func TestResolvePath(t *testing.T) {
	base := filepath.FromSlash("/exports/chat")

	assert.Equal(t, filepath.FromSlash("/exports/chat/photo.jpg"), resolvePath("photo.jpg", base))
	assert.Equal(t, filepath.FromSlash("/exports/media/photo.jpg"), resolvePath("../media/photo.jpg", base))
	assert.Equal(t, filepath.FromSlash("/exports/chat/my photo.jpg"), resolvePath("my%20photo.jpg", base))
	assert.Equal(t, filepath.FromSlash("/exports/chat/100%.jpg"), resolvePath("100%.jpg", base))
	assert.Equal(t, filepath.FromSlash("/elsewhere/x.png"), resolvePath("/elsewhere/x.png", base))
	assert.Equal(t, filepath.FromSlash("/elsewhere/x.png"), resolvePath("file:///elsewhere/x.png", base))
}

func TestCandidatePaths(t *testing.T) {
	base := filepath.FromSlash("/exports/chat")

	assert.Equal(t, []string{filepath.FromSlash("/exports/chat/photo.jpg")}, candidatePaths("photo.jpg", base))
	assert.Equal(t, []string{
		filepath.FromSlash("/exports/chat/a#1.jpg"),
		filepath.FromSlash("/exports/chat/a"),
	}, candidatePaths("a#1.jpg", base))
	assert.Equal(t, []string{
		filepath.FromSlash("/exports/chat/my%20photo.jpg"),
		filepath.FromSlash("/exports/chat/my photo.jpg"),
	}, candidatePaths(" my%20photo.jpg ", base))
}

func TestWithinDir(t *testing.T) {
	root := filepath.FromSlash("/staging/up-1")

	assert.True(t, withinDir(filepath.FromSlash("/staging/up-1/a.png"), root))
	assert.True(t, withinDir(filepath.FromSlash("/staging/up-1/media/..hidden.png"), root))
	assert.False(t, withinDir(filepath.FromSlash("/etc/passwd"), root))
	assert.False(t, withinDir(filepath.FromSlash("/staging/up-10/a.png"), root))
	assert.False(t, withinDir(filepath.FromSlash("/staging/a.png"), root))
}

func TestUniqueName(t *testing.T) {
	re := regexp.MustCompile(`^\d+-\d+\.jpg$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := UniqueName(".jpg")
		assert.Regexp(t, re, n)
		assert.False(t, seen[n], "duplicate name %s", n)
		seen[n] = true
	}
	assert.Regexp(t, `^\d+-\d+$`, UniqueName(""))
}

package model

import "fmt"

// MediaType classifies a file referenced from an ingested document.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaOther MediaType = "other"
)

// MediaTypes lists every valid MediaType.
var MediaTypes = []MediaType{MediaImage, MediaVideo, MediaAudio, MediaOther}

// Valid reports whether t is one of the closed set of media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaImage, MediaVideo, MediaAudio, MediaOther:
		return true
	}
	return false
}

// ParseMediaType converts a query value into a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown media type %q", s)
	}
	return t, nil
}

// Media is a file copied into managed storage while ingesting a Document.
// Path is the managed-storage key of the copy.
type Media struct {
	Type         MediaType `json:"type"`
	Path         string    `json:"path"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
}

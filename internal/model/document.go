package model

import "time"

// Document represents an ingested HTML export stored in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	FilePath     string    `json:"file_path"`
	Title        string    `json:"title,omitempty"`
	Excerpt      string    `json:"excerpt,omitempty"`
	Content      string    `json:"content,omitempty"`
	TextContent  string    `json:"text_content,omitempty"`
	Media        []Media   `json:"media"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentPatch is the set of metadata fields a caller may change after ingestion.
// Nil fields are left untouched.
type DocumentPatch struct {
	OriginalName *string `json:"original_name,omitempty"`
	Title        *string `json:"title,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.OriginalName == nil && p.Title == nil
}

// Stats summarizes the stored documents.
type Stats struct {
	TotalFiles       int64            `json:"total_files"`
	FilesByMediaType []MediaTypeCount `json:"files_by_media_type"`
	FilesByDate      []MonthCount     `json:"files_by_date"`
}

// MediaTypeCount is the number of media records of one type across all documents.
type MediaTypeCount struct {
	Type  MediaType `json:"type"`
	Count int64     `json:"count"`
}

// MonthCount is the number of documents created in one calendar month.
type MonthCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

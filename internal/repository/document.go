package repository

import (
	"context"
	"errors"
	"time"

	"htmlvault/internal/model"
)

// ErrNotFound is returned when no document matches the given ID.
var ErrNotFound = errors.New("document not found")

// DocumentRepository defines data access for documents.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored document.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, including content and media.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a page of documents without content or text_content.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Search returns a page of documents matching q, without content.
	Search(ctx context.Context, q SearchQuery) (*PageResult[model.Document], error)

	// Suggest returns up to limit original names containing term, case-insensitively.
	Suggest(ctx context.Context, term string, limit int) ([]string, error)

	// Stats aggregates document and media counts.
	Stats(ctx context.Context) (*model.Stats, error)

	// Update applies patch and sets updated_at. It returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, id string, patch model.DocumentPatch, updatedAt time.Time) (*model.Document, error)

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// Sort fields accepted by Search. SortRelevance requires a text query.
const (
	SortCreatedAt    = "created_at"
	SortUpdatedAt    = "updated_at"
	SortOriginalName = "original_name"
	SortSize         = "size"
	SortRelevance    = "relevance"
)

// SearchQuery filters and orders a document search.
// Zero values mean "no filter".
type SearchQuery struct {
	Text      string
	MediaType model.MediaType
	From      *time.Time
	To        *time.Time
	SortField string
	Ascending bool
	Page      PageQuery
}

// ValidSortField reports whether f is an accepted sort field.
func ValidSortField(f string) bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortOriginalName, SortSize, SortRelevance:
		return true
	}
	return false
}

// Package events publishes best-effort notifications about document changes.
package events

import (
	"context"
	"time"
)

// Event kinds. The subject of a published event is "<prefix>.<kind>".
const (
	KindIngested = "documents.ingested"
	KindDeleted  = "documents.deleted"
)

// Event describes a change to one document.
type Event struct {
	Kind         string    `json:"kind"`
	DocumentID   string    `json:"document_id"`
	OriginalName string    `json:"original_name,omitempty"`
	MediaCount   int       `json:"media_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }

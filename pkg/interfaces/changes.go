package interfaces

import "context"

// ChangeType describes what happened to a document in the index.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// ChangeEvent is published for every index mutation. Removal events carry a
// nil Document.
type ChangeEvent struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"_id"`
	Version  uint64     `json:"version"`
	Document Document   `json:"document,omitempty"`
}

// ChangePublisher receives index changes in version order.
type ChangePublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// ChangeSubscriber exposes the change feed to live-reload consumers. The
// returned channel is closed when ctx is cancelled or the feed shuts down.
type ChangeSubscriber interface {
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}

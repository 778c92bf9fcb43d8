package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrStoredDocumentNotFound is returned by DocumentStore.Lookup when no row
// exists for the key.
var ErrStoredDocumentNotFound = errors.New("content: stored document not found")

// StoredDocument is one persisted mirror row. Key is the document `_id`;
// Checksum is the hex SHA-256 of the source file the document was parsed from.
type StoredDocument struct {
	Key       string
	Source    string
	File      string
	Locale    string
	Checksum  string
	Document  Document
	UpdatedAt time.Time
}

// DocumentStore persists parsed documents so unchanged files can skip
// parsing on the next build.
type DocumentStore interface {
	Lookup(ctx context.Context, key string) (*StoredDocument, error)
	Save(ctx context.Context, record *StoredDocument) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*StoredDocument, error)
}

package storage

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewDocumentRepository builds the bun repository for mirror rows. Rows are
// addressed by their document key.
func NewDocumentRepository(db *bun.DB) repository.Repository[*DocumentRecord] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*DocumentRecord]{
		NewRecord: func() *DocumentRecord { return &DocumentRecord{} },
		GetID: func(r *DocumentRecord) uuid.UUID {
			return r.ID
		},
		SetID: func(r *DocumentRecord, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "key"
		},
		GetIdentifierValue: func(r *DocumentRecord) string {
			return r.Key
		},
	})
}

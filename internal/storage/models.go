package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DocumentRecord is one row of the persisted document mirror. Payload holds
// the JSON encoded document.
type DocumentRecord struct {
	bun.BaseModel `bun:"table:content_documents,alias:cd"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Key       string    `bun:"key,notnull,unique" json:"key"`
	Source    string    `bun:"source,notnull" json:"source"`
	File      string    `bun:"file,notnull" json:"file"`
	Locale    string    `bun:"locale" json:"locale,omitempty"`
	Checksum  string    `bun:"checksum,notnull" json:"checksum"`
	Payload   string    `bun:"payload,notnull" json:"payload"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const (
	documentNamespace = "go-content:document:"
	queryNamespace    = "go-content:query:"
)

// UUID derives a deterministic UUID from key using go-hashid. When normalize
// is false the key is hashed byte for byte, so keys that differ only in case
// stay distinct.
func UUID(key string, normalize bool) uuid.UUID {
	if strings.TrimSpace(key) == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(key, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(normalize))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
	}
	return uid
}

// DocumentUUID is the storage row id for a document `_id`.
func DocumentUUID(documentID string) uuid.UUID {
	return UUID(documentNamespace+documentID, false)
}

// QueryKey returns the compact content address for a canonical query payload.
func QueryKey(canonical []byte) string {
	return strings.ReplaceAll(UUID(queryNamespace+string(canonical), false).String(), "-", "")
}

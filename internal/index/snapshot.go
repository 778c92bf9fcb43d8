package index

import (
	"slices"

	"github.com/goliatone/go-content/pkg/interfaces"
)

// Snapshot is an immutable point-in-time view of the index. It is safe to
// share across goroutines; documents must be treated as read-only.
type Snapshot struct {
	version uint64
	docs    map[string]interfaces.Document
	ids     []string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{docs: map[string]interfaces.Document{}}
}

// Version increases by one for every published mutation batch.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Len returns the number of documents.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Get returns the document stored under id.
func (s *Snapshot) Get(id string) (interfaces.Document, bool) {
	if s == nil {
		return nil, false
	}
	doc, ok := s.docs[id]
	return doc, ok
}

// IDs returns all document ids in ascending order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.ids)
}

// Documents returns all documents ordered by `_id`.
func (s *Snapshot) Documents() []interfaces.Document {
	if s == nil {
		return nil
	}
	out := make([]interfaces.Document, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.docs[id])
	}
	return out
}

// Each visits documents in `_id` order until fn returns false.
func (s *Snapshot) Each(fn func(interfaces.Document) bool) {
	if s == nil {
		return
	}
	for _, id := range s.ids {
		if !fn(s.docs[id]) {
			return
		}
	}
}

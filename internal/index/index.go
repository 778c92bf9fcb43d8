// Package index holds the in-memory document set. Writers are serialized;
// readers load an immutable snapshot without locking.
package index

import (
	"context"
	"errors"
	"maps"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// ErrMissingID is returned when a document without `_id` is upserted.
var ErrMissingID = errors.New("index: document has no _id")

// Change records one applied mutation.
type Change = interfaces.ChangeEvent

// Mutation is either an upsert (Document set) or a removal (RemoveID set).
type Mutation struct {
	Document interfaces.Document
	RemoveID string
}

// Upsert builds an upsert mutation.
func Upsert(doc interfaces.Document) Mutation { return Mutation{Document: doc} }

// Remove builds a removal mutation.
func Remove(id string) Mutation { return Mutation{RemoveID: id} }

// Option configures an Index.
type Option func(*Index)

// WithPublisher forwards every change to publisher.
func WithPublisher(publisher interfaces.ChangePublisher) Option {
	return func(ix *Index) { ix.publisher = publisher }
}

// WithLogger sets the index logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(ix *Index) { ix.logger = logging.Ensure(logger) }
}

// Index is the single-writer document store. Changes are published after the
// write lock is released, in version order, by whichever writer claims the
// drain; other writers never wait on the publisher.
type Index struct {
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	pending   []Change
	draining  bool
	publisher interfaces.ChangePublisher
	logger    interfaces.Logger
}

func New(opts ...Option) *Index {
	ix := &Index{logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(ix)
		}
	}
	ix.current.Store(emptySnapshot())
	return ix
}

// Snapshot returns the latest published snapshot.
func (ix *Index) Snapshot() *Snapshot {
	return ix.current.Load()
}

// Upsert replaces the document stored under doc's `_id`. Upserting content
// equal to the stored document returns an empty Change and publishes nothing.
func (ix *Index) Upsert(ctx context.Context, doc interfaces.Document) (Change, error) {
	if doc.ID() == "" {
		return Change{}, ErrMissingID
	}
	changes, err := ix.Apply(ctx, []Mutation{Upsert(doc)})
	if err != nil || len(changes) == 0 {
		return Change{}, err
	}
	return changes[0], nil
}

// Remove deletes id. It reports false when id was not indexed.
func (ix *Index) Remove(ctx context.Context, id string) (Change, bool) {
	changes, _ := ix.Apply(ctx, []Mutation{Remove(id)})
	if len(changes) == 0 {
		return Change{}, false
	}
	return changes[0], true
}

// RemoveWhere deletes every document matching pred in one version.
func (ix *Index) RemoveWhere(ctx context.Context, pred func(interfaces.Document) bool) []Change {
	changes, _ := ix.commit(ctx, func() ([]Change, error) {
		var mutations []Mutation
		ix.current.Load().Each(func(doc interfaces.Document) bool {
			if pred(doc) {
				mutations = append(mutations, Remove(doc.ID()))
			}
			return true
		})
		return ix.applyLocked(mutations)
	})
	return changes
}

// Apply commits mutations as one version. Mutations later in the slice win
// over earlier ones for the same id. No-op mutations are dropped; when every
// mutation is a no-op no version is published.
func (ix *Index) Apply(ctx context.Context, mutations []Mutation) ([]Change, error) {
	for _, m := range mutations {
		if m.Document != nil && m.Document.ID() == "" {
			return nil, ErrMissingID
		}
	}

	return ix.commit(ctx, func() ([]Change, error) {
		return ix.applyLocked(mutations)
	})
}

// commit runs fn under the write lock and publishes the queued changes once
// the lock is released.
func (ix *Index) commit(ctx context.Context, fn func() ([]Change, error)) ([]Change, error) {
	ix.mu.Lock()
	changes, err := fn()
	drain := !ix.draining && len(ix.pending) > 0
	if drain {
		ix.draining = true
	}
	ix.mu.Unlock()

	if drain {
		ix.drain(ctx)
	}
	return changes, err
}

func (ix *Index) applyLocked(mutations []Mutation) ([]Change, error) {
	if len(mutations) == 0 {
		return nil, nil
	}

	prev := ix.current.Load()
	docs := maps.Clone(prev.docs)
	touched := map[string]int{}
	var changes []Change

	for _, m := range mutations {
		var change Change
		if m.Document != nil {
			id := m.Document.ID()
			existing, ok := docs[id]
			if ok && reflect.DeepEqual(existing, m.Document) {
				continue
			}
			change = Change{Type: interfaces.ChangeAdded, ID: id, Document: m.Document}
			if _, existed := prev.docs[id]; existed {
				change.Type = interfaces.ChangeUpdated
			}
			docs[id] = m.Document
		} else {
			if _, ok := docs[m.RemoveID]; !ok {
				continue
			}
			delete(docs, m.RemoveID)
			change = Change{Type: interfaces.ChangeRemoved, ID: m.RemoveID}
		}

		if at, seen := touched[change.ID]; seen {
			changes[at] = change
			continue
		}
		touched[change.ID] = len(changes)
		changes = append(changes, change)
	}

	// drop ids whose net effect across the batch is nothing
	changes = slices.DeleteFunc(changes, func(c Change) bool {
		before, hadBefore := prev.docs[c.ID]
		after, hasAfter := docs[c.ID]
		if !hadBefore || !hasAfter {
			return !hadBefore && !hasAfter
		}
		return reflect.DeepEqual(before, after)
	})
	if len(changes) == 0 {
		return nil, nil
	}

	next := &Snapshot{
		version: prev.version + 1,
		docs:    docs,
		ids:     sortedIDs(docs),
	}
	for i := range changes {
		changes[i].Version = next.version
	}
	ix.current.Store(next)

	ix.logger.Debug("index.published", "version", next.version, "changes", len(changes), "documents", len(next.ids))
	if ix.publisher != nil {
		ix.pending = append(ix.pending, changes...)
	}
	return changes, nil
}

// drain publishes pending changes until the queue is empty. Only one writer
// drains at a time, which keeps events in version order.
func (ix *Index) drain(ctx context.Context) {
	for {
		ix.mu.Lock()
		batch := ix.pending
		ix.pending = nil
		if len(batch) == 0 {
			ix.draining = false
			ix.mu.Unlock()
			return
		}
		ix.mu.Unlock()

		for _, change := range batch {
			if err := ix.publisher.Publish(ctx, change); err != nil {
				logging.WithDocument(ix.logger, change.ID).Warn("index.publish.failed", "version", change.Version, "error", err)
			}
		}
	}
}

func sortedIDs(docs map[string]interfaces.Document) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

package query

import (
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// DefaultCacheTTL bounds how long a result stays cached for one snapshot.
const DefaultCacheTTL = 5 * time.Minute

// Options configures an Engine. A negative CacheTTL disables caching.
type Options struct {
	CacheTTL time.Duration
	Logger   interfaces.Logger
}

// Result is the outcome of running a Query against one snapshot. Results
// may be shared through the cache and must not be mutated.
type Result struct {
	Key       string
	Version   uint64
	First     bool
	Found     bool
	Total     int
	Document  interfaces.Document
	Documents []interfaces.Document
}

// Value returns the JSON-facing value: the document (or nil) for first
// queries, otherwise the document list.
func (r *Result) Value() any {
	if r.First {
		if !r.Found {
			return nil
		}
		return r.Document
	}
	if r.Documents == nil {
		return []interfaces.Document{}
	}
	return r.Documents
}

// MarshalJSON encodes Value. Map keys are sorted by encoding/json, so equal
// results encode to identical bytes.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

// Engine evaluates queries against index snapshots.
type Engine struct {
	cache  *cache.Cache
	logger interfaces.Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{logger: logging.Ensure(opts.Logger)}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > 0 {
		e.cache = cache.New(ttl, 2*ttl)
	}
	return e
}

// Run evaluates q against snap. It never fails; zero matches yield an empty
// result (or Found=false when q asks for the first match).
func (e *Engine) Run(snap *index.Snapshot, q *Query) *Result {
	cacheKey := q.Key() + "@" + strconv.FormatUint(snap.Version(), 10)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached.(*Result)
		}
	}

	result := e.evaluate(snap, q)
	if e.cache != nil {
		e.cache.SetDefault(cacheKey, result)
	}
	e.logger.Trace("query.executed", "query_id", q.Key(), "version", result.Version, "total", result.Total)
	return result
}

// Flush drops every cached result.
func (e *Engine) Flush() {
	if e.cache != nil {
		e.cache.Flush()
	}
}

func (e *Engine) evaluate(snap *index.Snapshot, q *Query) *Result {
	desc := q.Descriptor()
	result := &Result{Key: q.Key(), Version: snap.Version(), First: desc.First}

	var matches []interfaces.Document
	snap.Each(func(doc interfaces.Document) bool {
		if q.expr.Match(doc) {
			matches = append(matches, doc)
		}
		return true
	})
	result.Total = len(matches)

	if len(desc.Sort) > 0 {
		sorter := newSorter(desc.Sort)
		slices.SortStableFunc(matches, sorter.compare)
	}

	if desc.Skip > 0 {
		if desc.Skip >= len(matches) {
			matches = nil
		} else {
			matches = matches[desc.Skip:]
		}
	}
	if desc.Limit > 0 && desc.Limit < len(matches) {
		matches = matches[:desc.Limit]
	}

	if desc.First {
		if len(matches) > 0 {
			result.Found = true
			result.Document = project(matches[0], desc.Only, desc.Without)
		}
		return result
	}

	result.Documents = make([]interfaces.Document, len(matches))
	for i, doc := range matches {
		result.Documents[i] = project(doc, desc.Only, desc.Without)
	}
	return result
}

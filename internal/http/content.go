package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-content/internal/head"
	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/navigation"
	"github.com/goliatone/go-content/internal/query"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// DefaultBasePath is where the content API mounts unless overridden.
const DefaultBasePath = "/api/_content"

const (
	headerQueryID = "X-Content-Query-Id"
	headerVersion = "X-Content-Version"
)

var (
	errDocumentIDRequired = errors.New("http: _id query parameter is required")
	errDocumentNotFound   = errors.New("http: document not found")
)

// SnapshotSource exposes the latest index snapshot. It is satisfied by
// *index.Index.
type SnapshotSource interface {
	Snapshot() *index.Snapshot
}

// ContentAPI serves queries, navigation trees and head metadata.
type ContentAPI struct {
	basePath  string
	source    SnapshotSource
	engine    *query.Engine
	navFields []string
	logger    interfaces.Logger
}

// ContentOption mutates the ContentAPI configuration.
type ContentOption func(*ContentAPI)

// NewContentAPI constructs a ContentAPI instance.
func NewContentAPI(opts ...ContentOption) *ContentAPI {
	api := &ContentAPI{
		basePath: DefaultBasePath,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	return api
}

// WithBasePath overrides the base API path (defaults to "/api/_content").
func WithBasePath(path string) ContentOption {
	return func(api *ContentAPI) {
		if api == nil {
			return
		}
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			api.basePath = trimmed
		}
	}
}

// WithSnapshotSource wires the index the API reads from.
func WithSnapshotSource(source SnapshotSource) ContentOption {
	return func(api *ContentAPI) {
		if api != nil {
			api.source = source
		}
	}
}

// WithQueryEngine wires the query engine. A default engine is created
// when none is supplied.
func WithQueryEngine(engine *query.Engine) ContentOption {
	return func(api *ContentAPI) {
		if api != nil {
			api.engine = engine
		}
	}
}

// WithNavigationFields lists document keys copied onto navigation links.
func WithNavigationFields(fields ...string) ContentOption {
	return func(api *ContentAPI) {
		if api != nil {
			api.navFields = append([]string(nil), fields...)
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger interfaces.Logger) ContentOption {
	return func(api *ContentAPI) {
		if api != nil {
			api.logger = logging.Ensure(logger)
		}
	}
}

// Register attaches the content endpoints to the provided mux.
func (api *ContentAPI) Register(mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("http: mux is required")
	}
	if api == nil {
		return fmt.Errorf("http: content api is nil")
	}
	if api.source == nil {
		return fmt.Errorf("http: snapshot source is required")
	}
	if api.engine == nil {
		api.engine = query.NewEngine(query.Options{Logger: api.logger})
	}

	base := joinPath(api.basePath, "")
	queryRoot := joinPath(base, "query")
	navRoot := joinPath(base, "navigation")

	mux.HandleFunc("GET "+queryRoot, api.handleQuery)
	mux.HandleFunc("POST "+queryRoot, api.handleQuery)
	mux.HandleFunc("GET "+queryRoot+"/{qid}", api.handleQuery)
	mux.HandleFunc("POST "+queryRoot+"/{qid}", api.handleQuery)

	mux.HandleFunc("GET "+navRoot, api.handleNavigation)
	mux.HandleFunc("POST "+navRoot, api.handleNavigation)
	mux.HandleFunc("GET "+navRoot+"/{qid}", api.handleNavigation)

	mux.HandleFunc("GET "+joinPath(base, "head"), api.handleHead)
	return nil
}

// run parses the request descriptor and evaluates it against the current
// snapshot. The qid path segment is informational; the server always
// addresses results by its own hash.
func (api *ContentAPI) run(w http.ResponseWriter, r *http.Request) (*query.Result, bool) {
	raw, err := readDescriptor(w, r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	q, err := query.Parse(raw)
	if err != nil {
		api.logger.Debug("http.query.rejected", "error", err)
		writeError(w, err)
		return nil, false
	}
	if qid := strings.TrimSpace(r.PathValue("qid")); qid != "" && qid != q.Key() {
		api.logger.Debug("http.query.qid_mismatch", "requested", qid, "computed", q.Key())
	}

	result := api.engine.Run(api.source.Snapshot(), q)
	w.Header().Set(headerQueryID, q.Key())
	w.Header().Set(headerVersion, formatVersion(result.Version))
	return result, true
}

func (api *ContentAPI) handleQuery(w http.ResponseWriter, r *http.Request) {
	result, ok := api.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *ContentAPI) handleNavigation(w http.ResponseWriter, r *http.Request) {
	result, ok := api.run(w, r)
	if !ok {
		return
	}
	docs := result.Documents
	if result.First && result.Found {
		docs = []interfaces.Document{result.Document}
	}
	links := navigation.Build(docs, navigation.Options{Fields: api.navFields})
	if links == nil {
		links = []*navigation.Link{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (api *ContentAPI) handleHead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("_id"))
	if id == "" {
		writeError(w, errDocumentIDRequired)
		return
	}
	snap := api.source.Snapshot()
	doc, ok := snap.Get(id)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", errDocumentNotFound, id))
		return
	}

	meta := head.Resolve(doc)
	w.Header().Set(headerVersion, formatVersion(snap.Version()))
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(meta.HTML()))
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

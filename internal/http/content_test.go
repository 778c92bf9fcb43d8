package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/query"
	"github.com/goliatone/go-content/pkg/interfaces"
)

func setupContentAPI(t *testing.T) (*http.ServeMux, *index.Index) {
	t.Helper()

	ix := index.New()
	docs := []interfaces.Document{
		{"_id": "content:index.md", "_path": "/", "_locale": "en", "title": "Home"},
		{"_id": "fa-ir:fa:index.md", "_path": "/", "_locale": "fa", "title": "Khaneh"},
		{"_id": "content:guide:index.md", "_path": "/guide", "_locale": "en", "title": "Guide"},
		{"_id": "content:guide:setup.md", "_path": "/guide/setup", "_locale": "en", "title": "Setup"},
		{"_id": "content:head.md", "_path": "/head", "_locale": "en", "title": "Head",
			"head": map[string]any{"title": "Head overwritten"}},
	}
	for _, doc := range docs {
		if _, err := ix.Upsert(context.Background(), doc); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	api := NewContentAPI(
		WithSnapshotSource(ix),
		WithQueryEngine(query.NewEngine(query.Options{})),
	)
	mux := http.NewServeMux()
	if err := api.Register(mux); err != nil {
		t.Fatalf("register api: %v", err)
	}
	return mux, ix
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target, body string, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("expected status %d got %d (%s)", wantStatus, rec.Code, rec.Body.String())
	}
	return rec
}

func paramsURL(path, descriptor string) string {
	return path + "?_params=" + url.QueryEscape(descriptor)
}

func TestQueryGetFirst(t *testing.T) {
	mux, _ := setupContentAPI(t)
	rec := doRequest(t, mux, http.MethodGet, paramsURL("/api/_content/query", `{"first":true,"where":{"_id":"content:index.md"}}`), "", http.StatusOK)

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["title"] != "Home" {
		t.Fatalf("unexpected document %v", doc)
	}
	if rec.Header().Get(headerQueryID) == "" || rec.Header().Get(headerVersion) != "5" {
		t.Fatalf("missing headers: %v", rec.Header())
	}
}

func TestQueryNotFoundIsNull(t *testing.T) {
	mux, _ := setupContentAPI(t)
	rec := doRequest(t, mux, http.MethodGet, paramsURL("/api/_content/query/abc", `{"first":true,"where":{"_id":"content:missing.md"}}`), "", http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "null" {
		t.Fatalf("expected null body, got %q", rec.Body.String())
	}
}

func TestQueryPostListsLocale(t *testing.T) {
	mux, _ := setupContentAPI(t)
	rec := doRequest(t, mux, http.MethodPost, "/api/_content/query", `{"locale":"fa","only":"_id"}`, http.StatusOK)

	var docs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 1 || docs[0]["_id"] != "fa-ir:fa:index.md" {
		t.Fatalf("unexpected documents %v", docs)
	}
}

func TestQueryIDIsServerComputed(t *testing.T) {
	mux, _ := setupContentAPI(t)
	descriptor := `{"where":{"_locale":"en"}}`
	q, err := query.Parse([]byte(descriptor))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	first := doRequest(t, mux, http.MethodGet, paramsURL("/api/_content/query/"+q.Key(), descriptor), "", http.StatusOK)
	second := doRequest(t, mux, http.MethodGet, paramsURL("/api/_content/query/wrong", descriptor), "", http.StatusOK)
	if first.Header().Get(headerQueryID) != q.Key() || second.Header().Get(headerQueryID) != q.Key() {
		t.Fatalf("expected computed key in both responses")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatal("expected identical bodies")
	}
}

func TestQueryMalformed(t *testing.T) {
	mux, _ := setupContentAPI(t)
	rec := doRequest(t, mux, http.MethodPost, "/api/_content/query", `{"where":{"title":{"$like":"x"}}}`, http.StatusBadRequest)

	var payload errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error != "malformed_query" || !strings.Contains(payload.Message, "$like") {
		t.Fatalf("unexpected error payload %+v", payload)
	}
	if !strings.Contains(string(payload.Descriptor), "$like") {
		t.Fatalf("expected descriptor echoed back, got %s", payload.Descriptor)
	}
}

func TestQueryReflectsIndexUpdates(t *testing.T) {
	mux, ix := setupContentAPI(t)
	target := paramsURL("/api/_content/query", `{"first":true,"where":{"_id":"content:index.md"},"only":"title"}`)

	before := doRequest(t, mux, http.MethodGet, target, "", http.StatusOK)
	if strings.TrimSpace(before.Body.String()) != `{"title":"Home"}` {
		t.Fatalf("unexpected body %s", before.Body.String())
	}

	if _, err := ix.Upsert(context.Background(), interfaces.Document{"_id": "content:index.md", "_path": "/", "_locale": "en", "title": "Home HMR"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	after := doRequest(t, mux, http.MethodGet, target, "", http.StatusOK)
	if strings.TrimSpace(after.Body.String()) != `{"title":"Home HMR"}` || after.Header().Get(headerVersion) != "6" {
		t.Fatalf("unexpected body %s (version %s)", after.Body.String(), after.Header().Get(headerVersion))
	}
}

func TestNavigationEndpoint(t *testing.T) {
	mux, _ := setupContentAPI(t)
	rec := doRequest(t, mux, http.MethodGet, paramsURL("/api/_content/navigation", `{"locale":"en","where":{"_path":{"$ne":"/head"}}}`), "", http.StatusOK)

	var links []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &links); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(links) != 2 || links[0]["_path"] != "/" || links[1]["_path"] != "/guide" {
		t.Fatalf("unexpected links %v", links)
	}
	children, _ := links[1]["children"].([]any)
	if len(children) != 1 {
		t.Fatalf("expected guide child, got %v", links[1])
	}
}

func TestHeadEndpoint(t *testing.T) {
	mux, _ := setupContentAPI(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/_content/head?_id=content:head.md", "", http.StatusOK)
	var meta map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta["title"] != "Head overwritten" {
		t.Fatalf("unexpected head %v", meta)
	}

	html := doRequest(t, mux, http.MethodGet, "/api/_content/head?_id=content:head.md&format=html", "", http.StatusOK)
	if !strings.Contains(html.Body.String(), "<title>Head overwritten</title>") {
		t.Fatalf("unexpected html %s", html.Body.String())
	}

	doRequest(t, mux, http.MethodGet, "/api/_content/head", "", http.StatusBadRequest)
	doRequest(t, mux, http.MethodGet, "/api/_content/head?_id=content:nope.md", "", http.StatusNotFound)
}

func TestRegisterRequiresSource(t *testing.T) {
	if err := NewContentAPI().Register(http.NewServeMux()); err == nil {
		t.Fatal("expected error without snapshot source")
	}
}

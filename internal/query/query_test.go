package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/pkg/interfaces"
)

func fixtureIndex(t *testing.T) *index.Index {
	t.Helper()
	ix := index.New()
	docs := []interfaces.Document{
		{"_id": "content:index.md", "_path": "/", "_locale": "en", "title": "Home", "tags": []any{"intro", "home"}, "_order": int64(1)},
		{"_id": "fa-ir:fa:index.md", "_path": "/", "_locale": "fa", "title": "Persian Home"},
		{"_id": "content:guide:1.setup.md", "_path": "/guide/setup", "_locale": "en", "title": "Setup", "_order": int64(1), "author": map[string]any{"name": "Ada"}},
		{"_id": "content:guide:2.usage.md", "_path": "/guide/usage", "_locale": "en", "title": "Usage", "_order": int64(2), "views": 10.5},
		{"_id": "content:guides.md", "_path": "/guides", "_locale": "en", "title": "Guides list", "views": int64(3)},
	}
	mutations := make([]index.Mutation, len(docs))
	for i, doc := range docs {
		mutations[i] = index.Upsert(doc)
	}
	if _, err := ix.Apply(context.Background(), mutations); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return ix
}

func run(t *testing.T, ix *index.Index, raw string) *Result {
	t.Helper()
	q, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse(%s): %v", raw, err)
	}
	return NewEngine(Options{}).Run(ix.Snapshot(), q)
}

func ids(docs []interfaces.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.ID()
	}
	return out
}

func TestListOnlyIDs(t *testing.T) {
	result := run(t, fixtureIndex(t), `{"only":"_id"}`)
	if len(result.Documents) != 5 {
		t.Fatalf("expected five documents, got %d", len(result.Documents))
	}
	for _, doc := range result.Documents {
		if len(doc) != 1 || doc.ID() == "" {
			t.Fatalf("expected projection to _id only, got %#v", doc)
		}
	}
	if result.Documents[0].ID() != "content:guide:1.setup.md" {
		t.Fatalf("expected _id ascending default order, got %v", ids(result.Documents))
	}
}

func TestFirstByID(t *testing.T) {
	ix := fixtureIndex(t)
	result := run(t, ix, `{"first":true,"where":{"_id":"content:index.md"}}`)
	if !result.Found || result.Document.Title() != "Home" {
		t.Fatalf("expected home document, got %#v", result)
	}

	missing := run(t, ix, `{"first":true,"where":{"_id":"content:.dot-ignored.md"}}`)
	if missing.Found || missing.Value() != nil {
		t.Fatalf("expected not found, got %#v", missing)
	}
	encoded, err := json.Marshal(missing)
	if err != nil || string(encoded) != "null" {
		t.Fatalf("expected null encoding, got %s (%v)", encoded, err)
	}
}

func TestLocaleScopes(t *testing.T) {
	ix := fixtureIndex(t)

	en := ids(run(t, ix, `{"where":{"_locale":"en"},"only":["_id"]}`).Documents)
	fa := ids(run(t, ix, `{"locale":"fa"}`).Documents)

	if !contains(en, "content:index.md") || contains(en, "fa-ir:fa:index.md") {
		t.Fatalf("unexpected en scope %v", en)
	}
	if !contains(fa, "fa-ir:fa:index.md") || contains(fa, "content:index.md") {
		t.Fatalf("unexpected fa scope %v", fa)
	}
}

func TestOperators(t *testing.T) {
	ix := fixtureIndex(t)
	cases := map[string][]string{
		`{"where":{"tags":"home"}}`:                                  {"content:index.md"},
		`{"where":{"tags":{"$containsAll":["home","intro"]}}}`:       {"content:index.md"},
		`{"where":{"views":{"$gt":5}}}`:                              {"content:guide:2.usage.md"},
		`{"where":{"views":{"$gte":3,"$lt":4}}}`:                     {"content:guides.md"},
		`{"where":{"author.name":"Ada"}}`:                            {"content:guide:1.setup.md"},
		`{"where":{"author":{"name":{"$regex":"/^ad/i"}}}}`:          {"content:guide:1.setup.md"},
		`{"where":{"title":{"$icontains":"PERSIAN"}}}`:               {"fa-ir:fa:index.md"},
		`{"where":{"$or":[{"title":"Setup"},{"title":"Usage"}]}}`:    {"content:guide:1.setup.md", "content:guide:2.usage.md"},
		`{"where":{"_id":{"$in":["content:guides.md","nope"]}}}`:     {"content:guides.md"},
		`{"where":{"views":{"$exists":true}}}`:                       {"content:guide:2.usage.md", "content:guides.md"},
		`{"where":{"tags":{"$size":2}}}`:                             {"content:index.md"},
		`{"where":{"views":{"$type":"number"},"_locale":{"$ne":"fa"}}}`: {"content:guide:2.usage.md", "content:guides.md"},
		`{"where":{"$not":{"_locale":"en"}}}`:                        {"fa-ir:fa:index.md"},
		`{"where":[{"_locale":"en"},{"_order":1}]}`:                  {"content:guide:1.setup.md", "content:index.md"},
	}
	for raw, want := range cases {
		got := ids(run(t, ix, raw).Documents)
		if !equalStrings(got, want) {
			t.Fatalf("%s: expected %v, got %v", raw, want, got)
		}
	}
}

func TestPathPrefixIsSegmentAware(t *testing.T) {
	got := ids(run(t, fixtureIndex(t), `{"path":["guide"]}`).Documents)
	want := []string{"content:guide:1.setup.md", "content:guide:2.usage.md"}
	if !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSortSkipLimit(t *testing.T) {
	ix := fixtureIndex(t)

	got := ids(run(t, ix, `{"sort":{"_order":-1},"where":{"_locale":"en"}}`).Documents)
	want := []string{"content:guide:2.usage.md", "content:guide:1.setup.md", "content:index.md", "content:guides.md"}
	if !equalStrings(got, want) {
		t.Fatalf("expected missing values last and _id ties, got %v", got)
	}

	page := run(t, ix, `{"sort":[{"title":1}],"skip":1,"limit":2}`)
	if page.Total != 5 || !equalStrings(ids(page.Documents), []string{"content:index.md", "fa-ir:fa:index.md"}) {
		t.Fatalf("unexpected page %v (total %d)", ids(page.Documents), page.Total)
	}

	first := run(t, ix, `{"first":true,"sort":{"views":-1}}`)
	if first.Document.ID() != "content:guide:2.usage.md" {
		t.Fatalf("expected highest views first, got %s", first.Document.ID())
	}
}

func TestWithoutDoesNotMutateIndex(t *testing.T) {
	ix := fixtureIndex(t)
	result := run(t, ix, `{"first":true,"where":{"_id":"content:guide:1.setup.md"},"without":["author.name","title"]}`)
	if _, ok := result.Document["title"]; ok {
		t.Fatalf("expected title removed, got %#v", result.Document)
	}
	if author := result.Document["author"].(map[string]any); len(author) != 0 {
		t.Fatalf("expected nested key removed, got %#v", author)
	}
	stored, _ := ix.Snapshot().Get("content:guide:1.setup.md")
	if stored["author"].(map[string]any)["name"] != "Ada" || stored.Title() != "Setup" {
		t.Fatalf("projection mutated the index: %#v", stored)
	}
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a, err := Parse([]byte(`{"first":true,"where":{"_id":"x","_locale":"en"},"only":"_id"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse([]byte(`{"only":["_id"],"where":{"_locale":"en","_id":"x"},"first":true}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %s and %s", a.Key(), b.Key())
	}
	if !bytes.Equal(a.Canonical(), b.Canonical()) {
		t.Fatalf("expected equal canonical forms")
	}

	c, _ := Parse([]byte(`{"first":false,"where":{"_id":"x","_locale":"en"},"only":"_id"}`))
	if a.Key() == c.Key() {
		t.Fatal("expected different descriptors to hash differently")
	}

	typed, err := Hash(Descriptor{First: true, Where: []map[string]any{{"_locale": "en", "_id": "x"}}, Only: []string{"_id"}})
	if err != nil || typed != a.Key() {
		t.Fatalf("expected typed descriptor hash to match wire hash, got %s (%v)", typed, err)
	}
}

func TestQueryDeterminism(t *testing.T) {
	ix := fixtureIndex(t)
	q, err := Parse([]byte(`{"where":{"_locale":"en"},"sort":{"title":1}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	engine := NewEngine(Options{CacheTTL: -1})
	first, _ := json.Marshal(engine.Run(ix.Snapshot(), q))
	second, _ := json.Marshal(engine.Run(ix.Snapshot(), q))
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical results")
	}
}

func TestCacheIsScopedToSnapshotVersion(t *testing.T) {
	ix := fixtureIndex(t)
	engine := NewEngine(Options{})
	q, err := Parse([]byte(`{"first":true,"where":{"_id":"content:index.md"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	before := engine.Run(ix.Snapshot(), q)
	if before != engine.Run(ix.Snapshot(), q) {
		t.Fatal("expected cached result for the same snapshot")
	}

	if _, err := ix.Upsert(context.Background(), interfaces.Document{"_id": "content:index.md", "title": "Changed"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	after := engine.Run(ix.Snapshot(), q)
	if after.Document.Title() != "Changed" {
		t.Fatalf("expected fresh result after snapshot change, got %q", after.Document.Title())
	}
}

func TestMalformedDescriptors(t *testing.T) {
	cases := []string{
		`{"where":{"title":{"$like":"x"}}}`,
		`{"where":{"$gt":1}}`,
		`{"where":{"title":{"$regex":"("}}}`,
		`{"where":{"tags":{"$in":"x"}}}`,
		`{"skip":-1}`,
		`{"limit":"ten"}`,
		`{"unknown":true}`,
		`{"sort":{"title":2}}`,
		`{"first":true`,
		`[1,2]`,
	}
	for _, raw := range cases {
		_, err := Parse([]byte(raw))
		var malformedErr *MalformedQueryError
		if !errors.As(err, &malformedErr) {
			t.Fatalf("%s: expected MalformedQueryError, got %v", raw, err)
		}
		if len(malformedErr.Descriptor) == 0 {
			t.Fatalf("%s: expected offending descriptor to be reported", raw)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed sentinel", raw)
		}
	}
}

func TestWrapCategorisesMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"where":{"a":{"$bogus":1}}}`))
	wrapped := Wrap(err)
	if !goerrors.IsCategory(wrapped, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", wrapped)
	}
	plain := errors.New("boom")
	if Wrap(plain) != plain {
		t.Fatal("expected unrelated errors to pass through")
	}
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	content "github.com/goliatone/go-content"
	"github.com/goliatone/go-content/pkg/testsupport"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCommandsPrintToStdout(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"build", "query", "serve"} {
		sub, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if sub.OutOrStderr() != os.Stdout {
			t.Fatalf("expected %s to print to stdout", name)
		}
	}
}

func TestQueryCommandKeepsStderrClean(t *testing.T) {
	root := fixtureRoot(t)
	cmd := newRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"query", "--root", root, "--locales", "en,fa", `{"only":"_id","where":{"_locale":"en"}}`})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("query: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != `[{"_id":"content:index.md"}]` {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected empty stderr, got %q", stderr.String())
	}
}

func fixtureRoot(t *testing.T) string {
	return testsupport.WriteTree(t, map[string]string{
		"index.md":    "# Hello\n",
		"fa/index.md": "# Salam\n",
		"broken.json": "{",
	})
}

func TestBuildCommandPrintsReport(t *testing.T) {
	root := fixtureRoot(t)
	out, err := runCLI(t, "", "build", "--root", root, "--locales", "en,fa", "--log-level", "error")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "indexed 2") || !strings.Contains(out, "failed 1") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "broken.json") {
		t.Fatalf("expected failed file listed, got %q", out)
	}
}

func TestQueryCommandReadsStdin(t *testing.T) {
	root := fixtureRoot(t)
	out, err := runCLI(t, `{"where":{"_locale":"fa"},"only":["_id","title"]}`,
		"query", "--root", root, "--locales", "en,fa", "--default-locale", "en")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &docs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(docs) != 1 || docs[0]["_id"] != "content:fa:index.md" || docs[0]["title"] != "Salam" {
		t.Fatalf("unexpected documents %v", docs)
	}
}

func TestQueryCommandRejectsMalformedDescriptor(t *testing.T) {
	root := fixtureRoot(t)
	_, err := runCLI(t, "", "query", `{"skip":-1}`, "--root", root)
	if err == nil {
		t.Fatal("expected malformed query error")
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	flags := &globalFlags{
		roots:         []string{"./site", "docs=./docs"},
		locales:       "en, fa",
		defaultLocale: "fa",
		addr:          ":8080",
	}
	cfg, err := flags.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := []content.SourceConfig{{Name: "content", Root: "./site"}, {Name: "docs", Root: "./docs"}}
	if len(cfg.Sources) != 2 || cfg.Sources[0] != want[0] || cfg.Sources[1] != want[1] {
		t.Fatalf("unexpected sources %+v", cfg.Sources)
	}
	if cfg.DefaultLocale != "fa" || len(cfg.Locales) != 2 || cfg.HTTP.Address != ":8080" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

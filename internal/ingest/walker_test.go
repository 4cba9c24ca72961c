package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/rulemap/internal/config"
)

func testConfig() config.RepositoryConfig {
	return config.RepositoryConfig{
		MaxFileSize:   1024,
		SQLExtensions: []string{".sql", ".ddl"},
		CodeExtensions: map[string][]string{
			"python":     {".py"},
			"javascript": {".js", ".ts"},
		},
		Ignore: []string{".git", "node_modules", "*.min.js"},
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkRoutesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "schema.sql", "CREATE TABLE t (x INT);")
	writeFile(t, root, "migrations/001.ddl", "ALTER TABLE t;")
	writeFile(t, root, "app/orders.py", "if total > 1: pass")
	writeFile(t, root, "web/cart.ts", "if (x > 1) {}")
	writeFile(t, root, "README.md", "docs")
	writeFile(t, root, "Makefile", "all:")

	files, err := NewWalker(testConfig(), nil).Walk(root)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	got := make(map[string]string, len(files))
	for _, f := range files {
		got[f.Path] = f.Language
	}
	want := map[string]string{
		"schema.sql":         LanguageSQL,
		"migrations/001.ddl": LanguageSQL,
		"app/orders.py":      "python",
		"web/cart.ts":        "javascript",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for path, lang := range want {
		if got[path] != lang {
			t.Errorf("%s routed to %q, want %q", path, got[path], lang)
		}
	}
}

func TestWalkPrunesIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.sql", "SELECT 1;")
	writeFile(t, root, ".git/objects/blob.sql", "SELECT 2;")
	writeFile(t, root, "node_modules/pkg/index.js", "if (price > 1) {}")

	files, err := NewWalker(testConfig(), nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "keep.sql" {
		t.Errorf("files = %v, want only keep.sql", files)
	}
}

func TestWalkIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "if (total > 1) {}")
	writeFile(t, root, "app.min.js", "if(total>1){}")

	files, err := NewWalker(testConfig(), nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "app.js" {
		t.Errorf("files = %v, want only app.js", files)
	}
}

func TestWalkSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.sql", "SELECT 1;")
	writeFile(t, root, "huge.sql", strings.Repeat("-- filler\n", 200))

	files, err := NewWalker(testConfig(), nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "small.sql" {
		t.Errorf("files = %v, want only small.sql", files)
	}
}

func TestWalkDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"b.sql", "a.sql", "c/d.sql"} {
		writeFile(t, root, rel, "SELECT 1;")
	}

	first, err := NewWalker(testConfig(), nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewWalker(testConfig(), nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != 3 || len(first) != len(second) {
		t.Fatalf("file counts: %d vs %d, want 3", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Errorf("order differs at %d: %s vs %s", i, first[i].Path, second[i].Path)
		}
	}
	if first[0].Path != "a.sql" {
		t.Errorf("first file = %s, want a.sql (lexical order)", first[0].Path)
	}
}

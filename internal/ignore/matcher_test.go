package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatcher_DefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"vendor/**",
		"!vendor/keep/file.py",
		"*.tmp",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", isDir: false, ignored: true},
		{path: ".ripple/graph_cache.json", isDir: false, ignored: true},
		{path: "pkg/__pycache__/mod.cpython-312.pyc", isDir: false, ignored: true},
		{path: ".venv", isDir: true, ignored: true},
		{path: "node_modules/pkg/index.js", isDir: false, ignored: true},
		{path: "vendor/lib/a.py", isDir: false, ignored: true},
		{path: "vendor/keep/file.py", isDir: false, ignored: false},
		{path: "nested/cache.tmp", isDir: false, ignored: true},
		{path: "src/main.py", isDir: false, ignored: false},
	}

	for _, tc := range cases {
		got := m.ShouldIgnore(tc.path, tc.isDir)
		if got != tc.ignored {
			t.Fatalf("path %s: expected ignored=%v, got %v", tc.path, tc.ignored, got)
		}
	}
}

func TestMatcher_NegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"build/",
		"!build/include/",
	})

	if !m.ShouldIgnore("build/out/file.py", false) {
		t.Fatalf("expected build/out/file.py to be ignored")
	}
	if m.ShouldIgnore("build/include/file.py", false) {
		t.Fatalf("expected build/include/file.py to be included")
	}
}

func TestNewLoadsRulesFileAndGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, RulesFile), "# generated code\ngen/\n")
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\nscratch/\n")

	m, err := New(root, []string{"!scratch/keep.py"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: "gen/models.py", ignored: true},
		{path: "debug.log", ignored: true},
		{path: "scratch", isDir: true, ignored: true},
		{path: "scratch/keep.py", ignored: false},
		{path: "app/main.py", ignored: false},
	}
	for _, tc := range cases {
		if got := m.ShouldIgnore(tc.path, tc.isDir); got != tc.ignored {
			t.Fatalf("path %s: expected ignored=%v, got %v", tc.path, tc.ignored, got)
		}
	}
}

func TestNewWithoutIgnoreFiles(t *testing.T) {
	m, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.ShouldIgnore("main.py", false) {
		t.Fatalf("expected main.py to be included")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

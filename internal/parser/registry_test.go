package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/morozRed/ripple/internal/ignore"
)

type mockParser struct {
	lang string
	exts []string
}

func (m mockParser) Language() string {
	return m.lang
}

func (m mockParser) Extensions() []string {
	return m.exts
}

func (m mockParser) Parse(filename string, content []byte) (*FileSymbols, error) {
	if string(content) == "broken" {
		return nil, fmt.Errorf("%w: line 1", ErrSyntax)
	}
	table := NewSymbolTable()
	name := Qualify(FileIdentifier(filename), "mock")
	table.Functions[name] = Symbol{DependsOn: []string{"b", "a", "b"}}
	return &FileSymbols{Path: filename, Language: m.lang, Table: table}, nil
}

func TestRegistryGetParserForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	p, ok := r.GetParserForFile("demo.MOCK")
	if !ok {
		t.Fatalf("expected parser for .MOCK extension")
	}
	if p.Language() != "mock" {
		t.Fatalf("expected language mock, got %s", p.Language())
	}
	if r.Supports("demo.txt") {
		t.Fatalf("expected .txt to be unsupported")
	}
}

func TestExtractNormalizesDependencies(t *testing.T) {
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	symbols, issue := r.Extract("pkg/demo.mock", []byte("ok"))
	if issue != nil {
		t.Fatalf("unexpected issue: %+v", issue)
	}
	sym, ok := symbols.Table.Functions["demo.mock"]
	if !ok {
		t.Fatalf("expected demo.mock in %v", symbols.Table.Functions)
	}
	if len(sym.DependsOn) != 2 || sym.DependsOn[0] != "a" || sym.DependsOn[1] != "b" {
		t.Fatalf("expected sorted deduped deps, got %v", sym.DependsOn)
	}
	if string(symbols.Content) != "ok" {
		t.Fatalf("expected content to be kept, got %q", symbols.Content)
	}
}

func TestExtractDegradesOnParseFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	symbols, issue := r.Extract("demo.mock", []byte("broken"))
	if issue == nil || issue.Severity != "error" {
		t.Fatalf("expected error issue, got %+v", issue)
	}
	if !symbols.Table.IsEmpty() || symbols.Table.Variables == nil || symbols.Table.Functions == nil {
		t.Fatalf("expected empty two-kind table, got %+v", symbols.Table)
	}

	if _, issue := r.Extract("demo.txt", []byte("x")); issue == nil {
		t.Fatalf("expected unsupported file issue")
	}
}

func TestParseFileReturnsErrors(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	path := filepath.Join(root, "bad.mock")
	mustWriteFile(t, path, "broken")
	if _, err := r.ParseFile(path); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestParseDirectoryRespectsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	mustWriteFile(t, filepath.Join(root, "keep.mock"), "ok")
	mustWriteFile(t, filepath.Join(root, "bad.mock"), "broken")
	mustWriteFile(t, filepath.Join(root, "skip", "ignored.mock"), "x")
	mustWriteFile(t, filepath.Join(root, "skip", "include.mock"), "y")
	mustWriteFile(t, filepath.Join(root, ".ripple", "hidden.mock"), "z")

	var seen []string
	result, err := r.ParseDirectory(context.Background(), root, ParseOptions{
		Ignore: ignore.NewMatcher([]string{
			"skip/*",
			"!skip/include.mock",
		}),
		Workers: 2,
		OnFile: func(path string, done int) {
			seen = append(seen, path)
		},
	})
	if err != nil {
		t.Fatalf("ParseDirectory failed: %v", err)
	}

	got := make([]string, 0, len(result.Files))
	for _, file := range result.Files {
		got = append(got, file.Path)
	}

	want := []string{"bad.mock", "keep.mock", "skip/include.mock"}
	if len(got) != len(want) {
		t.Fatalf("expected %d parsed files, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	sort.Strings(seen)
	if len(seen) != len(want) {
		t.Fatalf("expected progress for every file, got %v", seen)
	}
	if len(result.Issues) != 1 || result.Issues[0].File != "bad.mock" {
		t.Fatalf("expected one issue for bad.mock, got %+v", result.Issues)
	}
	if !result.Files[0].Table.IsEmpty() {
		t.Fatalf("expected broken file to degrade to an empty table")
	}
}

func TestQualifiedNameHelpers(t *testing.T) {
	if got := FileIdentifier("src/pkg/target.py"); got != "target" {
		t.Fatalf("FileIdentifier = %q", got)
	}
	if got := Qualify("a", "", "C", "f", "x"); got != "a.C.f.x" {
		t.Fatalf("Qualify = %q", got)
	}
	if got := BareName("a.C.f.x"); got != "x" {
		t.Fatalf("BareName = %q", got)
	}
	if got := BareName("method"); got != "method" {
		t.Fatalf("BareName(bare) = %q", got)
	}
	if got := Collapse("a.C.f.x"); got != "a.x" {
		t.Fatalf("Collapse = %q", got)
	}
	if got := Collapse("a.f"); got != "a.f" {
		t.Fatalf("Collapse(short) = %q", got)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

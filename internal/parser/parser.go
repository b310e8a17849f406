package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/morozRed/ripple/internal/ignore"
	"golang.org/x/sync/errgroup"
)

// ErrSyntax is wrapped by parsers when the source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// LanguageParser defines the interface each language must implement
type LanguageParser interface {
	// Language returns the language name (e.g., "python")
	Language() string

	// Extensions returns file extensions this parser handles
	Extensions() []string

	// Parse extracts the qualified symbol table from source code
	Parse(filename string, content []byte) (*FileSymbols, error)
}

// Registry holds all registered language parsers
type Registry struct {
	parsers   map[string]LanguageParser // language name -> parser
	extToLang map[string]string         // extension -> language name
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers:   make(map[string]LanguageParser),
		extToLang: make(map[string]string),
	}
}

// Register adds a language parser to the registry
func (r *Registry) Register(p LanguageParser) {
	lang := p.Language()
	r.parsers[lang] = p
	for _, ext := range p.Extensions() {
		r.extToLang[strings.ToLower(ext)] = lang
	}
}

// GetParserForFile returns the appropriate parser for a file
func (r *Registry) GetParserForFile(filename string) (LanguageParser, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	parser, ok := r.parsers[lang]
	return parser, ok
}

// Supports reports whether some registered parser handles filename.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.GetParserForFile(filename)
	return ok
}

// SupportedExtensions returns all supported file extensions, sorted
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract parses content with the parser registered for path. It never fails:
// unsupported files and parse errors produce an empty table plus an issue.
func (r *Registry) Extract(path string, content []byte) (FileSymbols, *ParseIssue) {
	result := FileSymbols{
		Path:    filepath.ToSlash(path),
		Table:   NewSymbolTable(),
		Content: content,
	}

	parser, ok := r.GetParserForFile(path)
	if !ok {
		return result, &ParseIssue{
			File:     result.Path,
			Severity: "warning",
			Message:  "unsupported file type",
		}
	}
	result.Language = parser.Language()

	symbols, err := parser.Parse(path, content)
	if err != nil {
		return result, &ParseIssue{
			File:     result.Path,
			Language: parser.Language(),
			Severity: "error",
			Message:  err.Error(),
		}
	}
	if symbols != nil {
		result.Table = symbols.Table
	}
	result.Table.Normalize()
	return result, nil
}

// ParseFile reads and parses a single file. Unlike Extract, read and parse
// errors are returned to the caller.
func (r *Registry) ParseFile(path string) (*FileSymbols, error) {
	parser, ok := r.GetParserForFile(path)
	if !ok {
		return nil, nil // unsupported file type, skip silently
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	symbols, err := parser.Parse(path, content)
	if err != nil {
		return nil, err
	}
	symbols.Table.Normalize()
	symbols.Language = parser.Language()
	symbols.Content = content
	return symbols, nil
}

// SourceFiles walks root and returns the slash-separated relative paths of
// every supported, non-ignored file, sorted.
func (r *Registry) SourceFiles(root string, matcher *ignore.Matcher) ([]string, []ParseIssue, error) {
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}

	files := make([]string, 0)
	issues := make([]ParseIssue, 0)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			relPath := path
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				relPath = rel
			}
			issues = append(issues, ParseIssue{
				File:     filepath.ToSlash(relPath),
				Severity: "warning",
				Message:  fmt.Sprintf("walk error: %v", err),
			})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if matcher.ShouldIgnore(relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !r.Supports(path) {
			return nil
		}

		files = append(files, filepath.ToSlash(relPath))
		return nil
	})

	sort.Strings(files)
	return files, issues, err
}

// ParseOptions tunes ParseDirectory.
type ParseOptions struct {
	Ignore  *ignore.Matcher
	Workers int
	// OnFile is called once per parsed file, serialized.
	OnFile func(path string, done int)
}

// ParseDirectory parses every supported file under root concurrently.
// Per-file failures become issues; only walk failures and context
// cancellation are returned as errors.
func (r *Registry) ParseDirectory(ctx context.Context, root string, opts ParseOptions) (*ParseResult, error) {
	paths, issues, err := r.SourceFiles(root, opts.Ignore)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type slot struct {
		file  *FileSymbols
		issue *ParseIssue
	}
	slots := make([]slot, len(paths))

	var (
		mu   sync.Mutex
		done int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, relPath := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
			if err != nil {
				slots[i].issue = &ParseIssue{File: relPath, Severity: "error", Message: err.Error()}
			} else {
				symbols, issue := r.Extract(relPath, content)
				slots[i] = slot{file: &symbols, issue: issue}
			}

			if opts.OnFile != nil {
				mu.Lock()
				done++
				opts.OnFile(relPath, done)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ParseResult{
		RootPath: root,
		Files:    make([]FileSymbols, 0, len(paths)),
		Issues:   issues,
	}
	for _, s := range slots {
		if s.file != nil {
			result.Files = append(result.Files, *s.file)
		}
		if s.issue != nil {
			result.Issues = append(result.Issues, *s.issue)
		}
	}
	sort.Slice(result.Issues, func(i, j int) bool {
		if result.Issues[i].File == result.Issues[j].File {
			return result.Issues[i].Message < result.Issues[j].Message
		}
		return result.Issues[i].File < result.Issues[j].File
	})
	return result, nil
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

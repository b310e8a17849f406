package parser

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolKind separates the two symbol channels tracked per file.
type SymbolKind int

const (
	SymbolVariable SymbolKind = iota
	SymbolFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolVariable:
		return "var"
	case SymbolFunction:
		return "func"
	default:
		return "unknown"
	}
}

// ParseSymbolKind accepts the names printed by String plus their long forms.
func ParseSymbolKind(value string) (SymbolKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "var", "variable", "variables":
		return SymbolVariable, nil
	case "func", "function", "functions":
		return SymbolFunction, nil
	default:
		return 0, fmt.Errorf("unknown symbol kind %q (expected var|func)", value)
	}
}

// Span is an inclusive 1-based line range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line falls inside the span.
func (s Span) Contains(line int) bool {
	return line >= s.Start && line <= s.End
}

// Symbol is one declared name and the qualified names it depends on.
type Symbol struct {
	DependsOn []string `json:"depends_on"`
	Params    []string `json:"params,omitempty"`
	Spans     []Span   `json:"spans,omitempty"`
}

// Covers reports whether any definition span of the symbol contains line.
func (s Symbol) Covers(line int) bool {
	for _, span := range s.Spans {
		if span.Contains(line) {
			return true
		}
	}
	return false
}

// SymbolTable holds one file's symbols keyed by qualified name, split by kind.
type SymbolTable struct {
	Variables map[string]Symbol `json:"variables"`
	Functions map[string]Symbol `json:"functions"`
}

// NewSymbolTable returns a table with both kinds initialized and empty.
func NewSymbolTable() SymbolTable {
	return SymbolTable{
		Variables: make(map[string]Symbol),
		Functions: make(map[string]Symbol),
	}
}

// Symbols returns the map for one kind.
func (t SymbolTable) Symbols(kind SymbolKind) map[string]Symbol {
	if kind == SymbolFunction {
		return t.Functions
	}
	return t.Variables
}

// Names returns the sorted qualified names of one kind.
func (t SymbolTable) Names(kind SymbolKind) []string {
	symbols := t.Symbols(kind)
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds name in either kind. Variables win when a name is declared as both.
func (t SymbolTable) Lookup(name string) (Symbol, SymbolKind, bool) {
	if sym, ok := t.Variables[name]; ok {
		return sym, SymbolVariable, true
	}
	if sym, ok := t.Functions[name]; ok {
		return sym, SymbolFunction, true
	}
	return Symbol{}, 0, false
}

// Len returns the number of symbols across both kinds.
func (t SymbolTable) Len() int {
	return len(t.Variables) + len(t.Functions)
}

// IsEmpty reports whether the table has no symbols.
func (t SymbolTable) IsEmpty() bool {
	return t.Len() == 0
}

// DefinedAt returns the sorted names of one kind whose definition spans
// contain any of the given 1-based lines.
func (t SymbolTable) DefinedAt(kind SymbolKind, lines []int) []string {
	out := make([]string, 0)
	symbols := t.Symbols(kind)
	for _, name := range t.Names(kind) {
		sym := symbols[name]
		for _, line := range lines {
			if sym.Covers(line) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// FunctionsAt returns the functions enclosing any of the given lines.
func FunctionsAt(table SymbolTable, lines []int) []string {
	return table.DefinedAt(SymbolFunction, lines)
}

// Clone returns a deep copy of the table.
func (t SymbolTable) Clone() SymbolTable {
	out := NewSymbolTable()
	for name, sym := range t.Variables {
		out.Variables[name] = sym.clone()
	}
	for name, sym := range t.Functions {
		out.Functions[name] = sym.clone()
	}
	return out
}

// Normalize initializes nil maps and sorts and dedupes every dependency list
// so the table serializes deterministically.
func (t *SymbolTable) Normalize() {
	if t.Variables == nil {
		t.Variables = make(map[string]Symbol)
	}
	if t.Functions == nil {
		t.Functions = make(map[string]Symbol)
	}
	for name, sym := range t.Variables {
		sym.DependsOn = normalizeStrings(sym.DependsOn)
		t.Variables[name] = sym
	}
	for name, sym := range t.Functions {
		sym.DependsOn = normalizeStrings(sym.DependsOn)
		t.Functions[name] = sym
	}
}

func (s Symbol) clone() Symbol {
	out := Symbol{}
	if s.DependsOn != nil {
		out.DependsOn = append([]string(nil), s.DependsOn...)
	}
	if s.Params != nil {
		out.Params = append([]string(nil), s.Params...)
	}
	if s.Spans != nil {
		out.Spans = append([]Span(nil), s.Spans...)
	}
	return out
}

// FileSymbols holds the symbol table extracted from a single file.
type FileSymbols struct {
	Path     string
	Language string
	Table    SymbolTable
	Content  []byte `json:"-"`
}

// ParseIssue captures non-fatal parser warnings/errors encountered while scanning files.
type ParseIssue struct {
	File     string `json:"file"`
	Language string `json:"language,omitempty"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}

// ParseResult holds the complete parse result for a codebase
type ParseResult struct {
	Files    []FileSymbols
	RootPath string
	Issues   []ParseIssue
}

package graph

import (
	"sort"

	"github.com/morozRed/ripple/internal/parser"
)

// ProjectGraph maps a file path to its symbol table. Entries are replaced
// wholesale, never patched.
type ProjectGraph map[string]parser.SymbolTable

// New creates an empty project graph
func New() ProjectGraph {
	return make(ProjectGraph)
}

// FileGraph returns a copy of path's table, or an empty two-kind table.
func (g ProjectGraph) FileGraph(path string) parser.SymbolTable {
	table, ok := g[path]
	if !ok {
		return parser.NewSymbolTable()
	}
	return table.Clone()
}

// Replace stores a normalized copy of table as path's entry.
func (g ProjectGraph) Replace(path string, table parser.SymbolTable) {
	table = table.Clone()
	table.Normalize()
	g[path] = table
}

// Remove drops path's entry.
func (g ProjectGraph) Remove(path string) {
	delete(g, path)
}

// Files returns the tracked paths, sorted.
func (g ProjectGraph) Files() []string {
	files := make([]string, 0, len(g))
	for file := range g {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// Clone returns a deep copy.
func (g ProjectGraph) Clone() ProjectGraph {
	out := make(ProjectGraph, len(g))
	for file, table := range g {
		out[file] = table.Clone()
	}
	return out
}

// Normalize sorts every dependency list and initializes missing maps.
func (g ProjectGraph) Normalize() {
	for file, table := range g {
		table.Normalize()
		g[file] = table
	}
}

// SymbolCount returns the number of symbols across all files.
func (g ProjectGraph) SymbolCount() int {
	count := 0
	for _, table := range g {
		count += table.Len()
	}
	return count
}

// KindOf reports the kind of a qualified name declared anywhere in the graph.
func (g ProjectGraph) KindOf(name string) (parser.SymbolKind, bool) {
	for _, file := range g.Files() {
		if _, kind, ok := g[file].Lookup(name); ok {
			return kind, true
		}
	}
	return 0, false
}

// symbolRef is a qualified name together with its channel.
type symbolRef struct {
	name string
	kind parser.SymbolKind
}

// eachSymbol visits the symbols of the given files in a stable order.
func (g ProjectGraph) eachSymbol(files []string, fn func(ref symbolRef, sym parser.Symbol)) {
	for _, file := range files {
		table, ok := g[file]
		if !ok {
			continue
		}
		for _, kind := range []parser.SymbolKind{parser.SymbolVariable, parser.SymbolFunction} {
			symbols := table.Symbols(kind)
			for _, name := range table.Names(kind) {
				fn(symbolRef{name: name, kind: kind}, symbols[name])
			}
		}
	}
}

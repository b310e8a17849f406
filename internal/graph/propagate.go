package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/morozRed/ripple/internal/parser"
)

// Mode selects how impact spreads through the graph.
type Mode int

const (
	// ModeStrict walks reverse dependencies project-wide by bare name,
	// never crossing from one kind to the other, and yields an emission
	// order with root causes first.
	ModeStrict Mode = iota
	// ModeCollapsed compares names reduced to file.leafName and expands to a
	// fixed point. Variables and functions share one affected set.
	ModeCollapsed
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeCollapsed:
		return "collapsed"
	default:
		return "unknown"
	}
}

// ParseMode converts a flag value into a Mode.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "strict":
		return ModeStrict, nil
	case "collapsed":
		return ModeCollapsed, nil
	default:
		return 0, fmt.Errorf("unknown propagation mode %q (expected strict|collapsed)", value)
	}
}

// Seed is a set of qualified names split by kind.
type Seed struct {
	Variables []string `json:"variables"`
	Functions []string `json:"functions"`
}

// Empty reports whether the seed names nothing.
func (s Seed) Empty() bool {
	return len(s.Variables) == 0 && len(s.Functions) == 0
}

// Names returns the names of one kind.
func (s Seed) Names(kind parser.SymbolKind) []string {
	if kind == parser.SymbolFunction {
		return s.Functions
	}
	return s.Variables
}

// Union merges two seeds, sorted and deduplicated.
func (s Seed) Union(other Seed) Seed {
	return Seed{
		Variables: sortedSet(append(append([]string{}, s.Variables...), other.Variables...)),
		Functions: sortedSet(append(append([]string{}, s.Functions...), other.Functions...)),
	}
}

// Without removes other's names per kind.
func (s Seed) Without(other Seed) Seed {
	return Seed{
		Variables: subtract(s.Variables, other.Variables),
		Functions: subtract(s.Functions, other.Functions),
	}
}

// All returns every name regardless of kind, sorted.
func (s Seed) All() []string {
	return sortedSet(append(append([]string{}, s.Variables...), s.Functions...))
}

// Options configures Propagate.
type Options struct {
	Mode Mode
	// File restricts ModeCollapsed to one file's table. Empty scans every
	// file. ModeStrict is always project-wide.
	File string
}

// Propagation is the affected closure split by kind. In ModeStrict the
// slices are in emission order; in ModeCollapsed they are sorted.
type Propagation struct {
	Mode      Mode     `json:"-"`
	Variables []string `json:"variables"`
	Functions []string `json:"functions"`
}

// Seed returns the propagation result as a seed.
func (p Propagation) Seed() Seed {
	return Seed{Variables: p.Variables, Functions: p.Functions}
}

// Empty reports whether nothing was affected.
func (p Propagation) Empty() bool {
	return p.Seed().Empty()
}

// Propagate expands seed through g according to opts. It is a pure function
// of its inputs and terminates on cyclic graphs.
func Propagate(g ProjectGraph, seed Seed, opts Options) Propagation {
	switch opts.Mode {
	case ModeCollapsed:
		files := g.Files()
		if opts.File != "" {
			files = []string{opts.File}
		}
		return propagateCollapsed(g, files, seed)
	default:
		return propagateStrict(g, seed)
	}
}

func propagateStrict(g ProjectGraph, seed Seed) Propagation {
	result := Propagation{Mode: ModeStrict}
	files := g.Files()
	for _, kind := range []parser.SymbolKind{parser.SymbolVariable, parser.SymbolFunction} {
		dependents := bareDependents(g, files, kind)
		order := reverseDependencyOrder(sortedSet(seed.Names(kind)), dependents)
		if kind == parser.SymbolFunction {
			result.Functions = order
		} else {
			result.Variables = order
		}
	}
	return result
}

// bareDependents indexes symbols of one kind by the bare names they depend on.
func bareDependents(g ProjectGraph, files []string, kind parser.SymbolKind) map[string][]string {
	index := make(map[string]map[string]bool)
	g.eachSymbol(files, func(ref symbolRef, sym parser.Symbol) {
		if ref.kind != kind {
			return
		}
		for _, dep := range sym.DependsOn {
			bare := parser.BareName(dep)
			if index[bare] == nil {
				index[bare] = make(map[string]bool)
			}
			index[bare][ref.name] = true
		}
	})

	out := make(map[string][]string, len(index))
	for bare, names := range index {
		list := make([]string, 0, len(names))
		for name := range names {
			list = append(list, name)
		}
		sort.Strings(list)
		out[bare] = list
	}
	return out
}

// reverseDependencyOrder emits each symbol after all of its dependents, then
// reverses the list. Iterative so deep chains do not grow the goroutine stack.
func reverseDependencyOrder(seeds []string, dependents map[string][]string) []string {
	type frame struct {
		name string
		next int
	}

	visited := make(map[string]bool)
	order := make([]string, 0)
	for _, seed := range seeds {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		stack := []frame{{name: seed}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := dependents[parser.BareName(top.name)]
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				if !visited[child] {
					visited[child] = true
					stack = append(stack, frame{name: child})
				}
				continue
			}
			order = append(order, top.name)
			stack = stack[:len(stack)-1]
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// propagateCollapsed runs the collapsed fixed point as a work queue: every
// collapsed name enters the frontier once, and each symbol depending on it
// joins the affected set.
func propagateCollapsed(g ProjectGraph, files []string, seed Seed) Propagation {
	index := make(map[string][]symbolRef)
	g.eachSymbol(files, func(ref symbolRef, sym parser.Symbol) {
		seen := make(map[string]bool, len(sym.DependsOn))
		for _, dep := range sym.DependsOn {
			collapsed := parser.Collapse(dep)
			if seen[collapsed] {
				continue
			}
			seen[collapsed] = true
			index[collapsed] = append(index[collapsed], ref)
		}
	})

	affected := map[parser.SymbolKind]map[string]bool{
		parser.SymbolVariable: make(map[string]bool),
		parser.SymbolFunction: make(map[string]bool),
	}
	queued := make(map[string]bool)
	frontier := make([]string, 0)
	enqueue := func(name string) {
		collapsed := parser.Collapse(name)
		if queued[collapsed] {
			return
		}
		queued[collapsed] = true
		frontier = append(frontier, collapsed)
	}

	for _, kind := range []parser.SymbolKind{parser.SymbolVariable, parser.SymbolFunction} {
		for _, name := range sortedSet(seed.Names(kind)) {
			affected[kind][name] = true
			enqueue(name)
		}
	}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, ref := range index[current] {
			if affected[ref.kind][ref.name] {
				continue
			}
			affected[ref.kind][ref.name] = true
			enqueue(ref.name)
		}
	}

	return Propagation{
		Mode:      ModeCollapsed,
		Variables: sortedKeys(affected[parser.SymbolVariable]),
		Functions: sortedKeys(affected[parser.SymbolFunction]),
	}
}

func sortedSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		seen[value] = true
	}
	return sortedKeys(seen)
}

func sortedKeys(values map[string]bool) []string {
	out := make([]string, 0, len(values))
	for value := range values {
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func subtract(values, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, value := range remove {
		drop[value] = true
	}
	out := make([]string, 0, len(values))
	for _, value := range sortedSet(values) {
		if !drop[value] {
			out = append(out, value)
		}
	}
	return out
}

package graph

import (
	"testing"

	"github.com/morozRed/ripple/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(vars, funcs map[string][]string) parser.SymbolTable {
	t := parser.NewSymbolTable()
	for name, deps := range vars {
		t.Variables[name] = parser.Symbol{DependsOn: deps}
	}
	for name, deps := range funcs {
		t.Functions[name] = parser.Symbol{DependsOn: deps}
	}
	t.Normalize()
	return t
}

// ============================================================================
// ProjectGraph
// ============================================================================

func TestFileGraphReturnsEmptyTableForUnknownPath(t *testing.T) {
	g := New()
	got := g.FileGraph("missing.py")
	assert.NotNil(t, got.Variables)
	assert.NotNil(t, got.Functions)
	assert.True(t, got.IsEmpty())
}

func TestReplaceStoresNormalizedCopy(t *testing.T) {
	g := New()
	src := parser.NewSymbolTable()
	src.Variables["a.x"] = parser.Symbol{DependsOn: []string{"a.z", "a.y", "a.z"}}
	g.Replace("a.py", src)

	src.Variables["a.extra"] = parser.Symbol{}
	assert.Equal(t, []string{"a.y", "a.z"}, g["a.py"].Variables["a.x"].DependsOn)
	assert.NotContains(t, g["a.py"].Variables, "a.extra")

	kind, ok := g.KindOf("a.x")
	require.True(t, ok)
	assert.Equal(t, parser.SymbolVariable, kind)
	assert.Equal(t, 1, g.SymbolCount())
}

// ============================================================================
// Change classifier
// ============================================================================

func TestDiffIsPureSetDifference(t *testing.T) {
	tables := []parser.SymbolTable{
		parser.NewSymbolTable(),
		table(map[string][]string{"m.a": nil, "m.b": nil}, map[string][]string{"m.f": nil}),
		table(map[string][]string{"m.b": nil, "m.c": nil}, map[string][]string{"m.g": nil}),
		table(nil, map[string][]string{"m.f": nil, "m.g": nil}),
	}

	for _, previous := range tables {
		for _, current := range tables {
			changes := Diff(previous, current)
			for _, kind := range []parser.SymbolKind{parser.SymbolVariable, parser.SymbolFunction} {
				added := changes.Added().Names(kind)
				deleted := changes.Deleted().Names(kind)
				for _, name := range added {
					assert.NotContains(t, deleted, name)
					assert.Contains(t, current.Symbols(kind), name)
					assert.NotContains(t, previous.Symbols(kind), name)
				}
				for _, name := range deleted {
					assert.Contains(t, previous.Symbols(kind), name)
					assert.NotContains(t, current.Symbols(kind), name)
				}
			}
		}
	}
}

func TestDiffReportsRenameAsDeletePlusAdd(t *testing.T) {
	previous := table(map[string][]string{"m.old": nil, "m.kept": nil}, nil)
	current := table(map[string][]string{"m.new": nil, "m.kept": nil}, nil)

	changes := Diff(previous, current)
	assert.Equal(t, []string{"m.new"}, changes.AddedVariables)
	assert.Equal(t, []string{"m.old"}, changes.DeletedVariables)
	assert.Empty(t, changes.AddedFunctions)
	assert.Empty(t, changes.DeletedFunctions)
	assert.False(t, changes.Empty())
}

// ============================================================================
// Strict propagation
// ============================================================================

func TestStrictPropagationOrdersRootCauseFirst(t *testing.T) {
	g := New()
	g.Replace("a.py", table(map[string][]string{
		"a.x": nil,
		"a.y": {"a.x"},
		"a.z": {"a.y"},
	}, map[string][]string{
		"a.f": {"a.x"},
	}))

	got := Propagate(g, Seed{Variables: []string{"a.x"}}, Options{Mode: ModeStrict})
	assert.Equal(t, []string{"a.x", "a.y", "a.z"}, got.Variables)
	assert.Empty(t, got.Functions, "variables never propagate into functions")
}

func TestStrictPropagationMatchesBareNamesAcrossFiles(t *testing.T) {
	g := New()
	g.Replace("a.py", table(map[string][]string{"a.x": nil}, nil))
	g.Replace("b.py", table(map[string][]string{
		"b.w": {"x"},
		"b.v": {"b.g.x"},
		"b.u": {"b.other"},
	}, nil))

	got := Propagate(g, Seed{Variables: []string{"a.x"}}, Options{Mode: ModeStrict})
	assert.ElementsMatch(t, []string{"a.x", "b.v", "b.w"}, got.Variables)
	assert.Equal(t, "a.x", got.Variables[0])
}

func TestStrictPropagationTerminatesOnCycles(t *testing.T) {
	g := New()
	g.Replace("a.py", table(nil, map[string][]string{
		"a.p": {"a.q"},
		"a.q": {"a.p"},
	}))

	got := Propagate(g, Seed{Functions: []string{"a.p"}}, Options{Mode: ModeStrict})
	assert.Equal(t, []string{"a.p", "a.q"}, got.Functions)
}

func TestStrictPropagationKeepsUnknownSeeds(t *testing.T) {
	got := Propagate(New(), Seed{Functions: []string{"gone.f"}}, Options{})
	assert.Equal(t, []string{"gone.f"}, got.Functions)
	assert.Empty(t, got.Variables)
}

// ============================================================================
// Collapsed propagation
// ============================================================================

func scenarioGraph() ProjectGraph {
	g := New()
	g.Replace("mod.py", table(map[string][]string{
		"mod.y":   {"mod.f"},
		"mod.f.x": {"mod.f"},
	}, map[string][]string{
		"mod.f": {"mod.f.x"},
	}))
	g.Replace("other.py", table(map[string][]string{
		"other.k": {"mod.f"},
	}, nil))
	return g
}

func TestCollapsedPropagationReachesParametersAndCallers(t *testing.T) {
	got := Propagate(scenarioGraph(), Seed{Functions: []string{"mod.f"}}, Options{Mode: ModeCollapsed, File: "mod.py"})
	assert.Equal(t, []string{"mod.f"}, got.Functions)
	assert.Equal(t, []string{"mod.f.x", "mod.y"}, got.Variables)
}

func TestCollapsedPropagationRespectsFileScope(t *testing.T) {
	g := scenarioGraph()

	scoped := Propagate(g, Seed{Functions: []string{"mod.f"}}, Options{Mode: ModeCollapsed, File: "mod.py"})
	assert.NotContains(t, scoped.Variables, "other.k")

	wide := Propagate(g, Seed{Functions: []string{"mod.f"}}, Options{Mode: ModeCollapsed})
	assert.Contains(t, wide.Variables, "other.k")
}

func TestCollapsedPropagationCatchesSameNamedRedeclarations(t *testing.T) {
	g := New()
	g.Replace("m.py", table(map[string][]string{
		"m.f.total": nil,
		"m.g.out":   {"m.g.total"},
	}, nil))

	got := Propagate(g, Seed{Variables: []string{"m.f.total"}}, Options{Mode: ModeCollapsed, File: "m.py"})
	assert.Equal(t, []string{"m.f.total", "m.g.out"}, got.Variables)
}

func TestPropagationIsPure(t *testing.T) {
	g := scenarioGraph()
	seed := Seed{Variables: []string{"mod.f.x"}, Functions: []string{"mod.f"}}

	for _, mode := range []Mode{ModeStrict, ModeCollapsed} {
		first := Propagate(g, seed, Options{Mode: mode})
		second := Propagate(g, seed, Options{Mode: mode})
		assert.Equal(t, first, second, "mode %s", mode)
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("Collapsed")
	require.NoError(t, err)
	assert.Equal(t, ModeCollapsed, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, mode)

	_, err = ParseMode("sideways")
	assert.Error(t, err)
}

func TestSeedSetOperations(t *testing.T) {
	a := Seed{Variables: []string{"m.b", "m.a"}, Functions: []string{"m.f"}}
	b := Seed{Variables: []string{"m.a"}, Functions: []string{"m.g"}}

	assert.Equal(t, Seed{Variables: []string{"m.a", "m.b"}, Functions: []string{"m.f", "m.g"}}, a.Union(b))
	assert.Equal(t, Seed{Variables: []string{"m.b"}, Functions: []string{"m.f"}}, a.Without(b))
	assert.Equal(t, []string{"m.a", "m.b", "m.f"}, a.All())
}

// ============================================================================
// Deletion tracer
// ============================================================================

func TestTraceDeletionFindsCallersOfDeletedFunction(t *testing.T) {
	g := New()
	g.Replace("a.py", table(map[string][]string{
		"a.res":    {"a.caller"},
		"a.unused": {"a.other"},
	}, map[string][]string{
		"a.caller": {"a.caller.helper"},
	}))

	got := TraceDeletion(g, Seed{Functions: []string{"a.helper"}})
	assert.Equal(t, []string{"a.caller"}, got.Functions)
	assert.Equal(t, []string{"a.res"}, got.Variables)
}

func TestTraceDeletionCrossesKinds(t *testing.T) {
	g := New()
	g.Replace("a.py", table(nil, map[string][]string{
		"a.f": {"a.f.LIMIT"},
	}))
	g.Replace("b.py", table(map[string][]string{
		"b.v": {"b.LIMIT"},
	}, nil))

	got := TraceDeletion(g, Seed{Variables: []string{"a.LIMIT"}})
	assert.Equal(t, []string{"a.f"}, got.Functions)
	assert.Empty(t, got.Variables, "collapsed names keep their file prefix")
}

func TestTraceDeletionWithNothingDeleted(t *testing.T) {
	got := TraceDeletion(scenarioGraph(), Seed{})
	assert.True(t, got.Empty())
}

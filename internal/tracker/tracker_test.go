package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/morozRed/ripple/internal/history"
	"github.com/morozRed/ripple/internal/languages"
	"github.com/morozRed/ripple/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	results []*ImpactResult
}

func (s *recordingSink) ReportResult(r *ImpactResult) {
	s.results = append(s.results, r)
}

type fixture struct {
	root    string
	tracker *Tracker
	graph   *state.GraphStore
	snaps   *state.SnapshotStore
	history *history.Store
	sink    *recordingSink
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		mustWriteFile(t, filepath.Join(root, name), content)
	}

	backend := state.NewFileBackend(filepath.Join(root, ".ripple"))
	snaps, err := state.OpenSnapshotStore(backend, nil)
	require.NoError(t, err)
	graphStore := state.NewGraphStore(backend, nil, nil)
	hist, err := history.Open(filepath.Join(root, ".ripple", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	sink := &recordingSink{}
	tr, err := New(Options{
		Root:      root,
		Registry:  languages.NewDefaultRegistry(),
		Snapshots: snaps,
		Graph:     graphStore,
		History:   hist,
		Sink:      sink,
	})
	require.NoError(t, err)

	_, err = tr.Baseline(context.Background(), nil)
	require.NoError(t, err)
	return &fixture{root: root, tracker: tr, graph: graphStore, snaps: snaps, history: hist, sink: sink}
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	mustWriteFile(t, filepath.Join(f.root, name), content)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBaselineBuildsGraphAndSnapshots(t *testing.T) {
	f := newFixture(t, map[string]string{
		"pkg/a.py":       "x = 1\n",
		"README.md":      "# docs\n",
		".venv/lib/v.py": "ignored = 1\n",
	})

	g := f.graph.Load()
	assert.Equal(t, []string{"pkg/a.py"}, g.Files())
	assert.Contains(t, g["pkg/a.py"].Variables, "a.x")
	assert.Equal(t, []string{"pkg/a.py"}, f.snaps.Files())
}

func TestHandleChangeReportsModifiedClosure(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.py": "def f(x):\n    return x + 1\n\ny = f(2)\n",
	})

	f.write(t, "a.py", "def f(x):\n    return x + 2\n\ny = f(2)\n")
	result, err := f.tracker.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)

	assert.Equal(t, state.ClassContent, result.Classification)
	assert.Equal(t, []int{2}, result.ChangedLines)
	assert.Equal(t, []string{"a.f"}, result.Modified.Functions)
	assert.Equal(t, []string{"a.f.x", "a.y"}, result.Modified.Variables)
	assert.Empty(t, result.Added.All())
	assert.Empty(t, result.Deleted.All())
	assert.ElementsMatch(t, []string{"a.f.x", "a.y"}, result.Ordered.Variables)
	assert.Equal(t, []string{"a.f"}, result.Ordered.Functions)

	again, err := f.tracker.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)
	assert.Equal(t, state.ClassNone, again.Classification, "baseline is committed after processing")
}

func TestHandleChangeExcludesAddedSymbols(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.py": "x = 1\n",
	})

	f.write(t, "a.py", "x = 1\nz = x\n")
	result, err := f.tracker.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.z"}, result.Added.Variables)
	assert.NotContains(t, result.Modified.Variables, "a.z")
	assert.NotContains(t, result.Ordered.Variables, "a.z")
	assert.Contains(t, f.graph.FileGraph("a.py").Variables, "a.z")
}

func TestHandleChangeTracesDeletedFunctionCallers(t *testing.T) {
	f := newFixture(t, map[string]string{
		"b.py": "def helper():\n    return 1\n\ndef caller():\n    return helper()\n",
	})

	f.write(t, "b.py", "def caller():\n    return helper()\n")
	result, err := f.tracker.HandleChange(context.Background(), "b.py")
	require.NoError(t, err)

	assert.Equal(t, []string{"b.helper"}, result.Deleted.Functions)
	assert.Contains(t, result.AffectedByDeletion.Functions, "b.caller")
	assert.Contains(t, result.Ordered.Functions, "b.caller")
	assert.NotContains(t, f.graph.FileGraph("b.py").Functions, "b.helper")
}

func TestHandleChangeReorderSkipsGraphRebuild(t *testing.T) {
	f := newFixture(t, map[string]string{
		"c.py": "def g():\n    first = 1\n    second = 2\n    return first\n",
	})
	before := f.graph.FileGraph("c.py")

	f.write(t, "c.py", "def g():\n    second = 2\n    first = 1\n    return first\n")
	result, err := f.tracker.HandleChange(context.Background(), "c.py")
	require.NoError(t, err)

	assert.Equal(t, state.ClassFileReorder, result.Classification)
	assert.Equal(t, []string{"c.g"}, result.ReorderedFunctions)
	assert.Empty(t, result.Impacted())
	assert.Equal(t, before, f.graph.FileGraph("c.py"))

	lines, ok := f.snaps.Lines("c.py")
	require.True(t, ok)
	assert.Equal(t, "    second = 2", lines[1])
}

func TestHandleChangeMissingAndUnsupported(t *testing.T) {
	f := newFixture(t, map[string]string{"a.py": "x = 1\n"})

	result, err := f.tracker.HandleChange(context.Background(), "gone.py")
	require.NoError(t, err)
	assert.Equal(t, state.ClassMissing, result.Classification)
	assert.Empty(t, result.Impacted())

	_, err = f.tracker.HandleChange(context.Background(), "notes.txt")
	assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)

	_, err = f.tracker.HandleChange(context.Background(), filepath.Join(f.root, "..", "elsewhere.py"))
	assert.True(t, errors.Is(err, ErrOutsideRoot), "got %v", err)
}

func TestHandleChangeWithSyntaxErrorDegradesToEmptyTable(t *testing.T) {
	f := newFixture(t, map[string]string{"a.py": "x = 1\n"})

	f.write(t, "a.py", "def broken(:\n    pass\n")
	result, err := f.tracker.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)

	assert.NotEmpty(t, result.ParseError)
	assert.Equal(t, []string{"a.x"}, result.Deleted.Variables)
	assert.True(t, f.graph.FileGraph("a.py").IsEmpty())
}

func TestHandleChangeReorderKeepsParseError(t *testing.T) {
	f := newFixture(t, map[string]string{"c.py": "def g(x):\n    return x\n"})

	f.write(t, "c.py", "    return x\ndef g(x):\n")
	result, err := f.tracker.HandleChange(context.Background(), "c.py")
	require.NoError(t, err)

	assert.True(t, result.Classification.IsReorder(), "got %s", result.Classification)
	assert.NotEmpty(t, result.ParseError)
	assert.Empty(t, result.ReorderedFunctions)
}

// flakyGraphBackend rejects graph writes while failGraph is set.
type flakyGraphBackend struct {
	state.Backend
	failGraph bool
}

func (b *flakyGraphBackend) Write(key string, data []byte) error {
	if b.failGraph && key == state.GraphKey {
		return errors.New("disk full")
	}
	return b.Backend.Write(key, data)
}

func TestHandleChangeGraphWriteFailureLeavesSnapshotUncommitted(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.py"), "x = 1\n")

	backend := &flakyGraphBackend{Backend: state.NewFileBackend(filepath.Join(root, ".ripple"))}
	snaps, err := state.OpenSnapshotStore(backend, nil)
	require.NoError(t, err)
	graphStore := state.NewGraphStore(backend, nil, nil)
	sink := &recordingSink{}
	tr, err := New(Options{
		Root:      root,
		Registry:  languages.NewDefaultRegistry(),
		Snapshots: snaps,
		Graph:     graphStore,
		Sink:      sink,
	})
	require.NoError(t, err)
	_, err = tr.Baseline(context.Background(), nil)
	require.NoError(t, err)

	updated := "x = 1\ndef g(y):\n    return y\n"
	mustWriteFile(t, filepath.Join(root, "a.py"), updated)

	backend.failGraph = true
	_, err = tr.HandleChange(context.Background(), "a.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	lines, ok := snaps.Lines("a.py")
	require.True(t, ok)
	assert.Equal(t, []string{"x = 1"}, lines)
	assert.NotContains(t, graphStore.FileGraph("a.py").Functions, "a.g")
	assert.Empty(t, sink.results)

	backend.failGraph = false
	result, err := tr.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)
	assert.Equal(t, state.ClassContent, result.Classification)
	assert.Equal(t, []string{"a.g"}, result.Added.Functions)
	assert.Contains(t, graphStore.FileGraph("a.py").Functions, "a.g")

	lines, _ = snaps.Lines("a.py")
	assert.Len(t, lines, 3)
}

func TestRemoveDropsFileFromStores(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.py": "x = 1\n",
		"b.py": "def helper():\n    return 1\n",
	})

	require.NoError(t, os.Remove(filepath.Join(f.root, "b.py")))
	result, err := f.tracker.Remove(context.Background(), "b.py")
	require.NoError(t, err)

	assert.Equal(t, state.ClassRemoved, result.Classification)
	assert.Equal(t, []string{"b.helper"}, result.Deleted.Functions)
	assert.Equal(t, []string{"a.py"}, f.graph.Load().Files())
	assert.Equal(t, []string{"a.py"}, f.snaps.Files())

	again, err := f.tracker.Remove(context.Background(), "b.py")
	require.NoError(t, err)
	assert.Equal(t, state.ClassMissing, again.Classification)
}

func TestStatusDoesNotCommit(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.py": "x = 1\n",
		"b.py": "y = 2\n",
	})
	f.write(t, "a.py", "x = 3\n")
	f.write(t, "new.py", "z = 1\n")
	require.NoError(t, os.Remove(filepath.Join(f.root, "b.py")))

	statuses, err := f.tracker.Status(context.Background())
	require.NoError(t, err)

	got := make(map[string]state.Classification)
	for _, s := range statuses {
		got[s.Path] = s.Classification
	}
	assert.Equal(t, map[string]state.Classification{
		"a.py":   state.ClassContent,
		"b.py":   state.ClassMissing,
		"new.py": state.ClassContent,
	}, got)

	lines, _ := f.snaps.Lines("a.py")
	assert.Equal(t, []string{"x = 1"}, lines)
}

func TestProcessedEventsReachSinkAndHistory(t *testing.T) {
	f := newFixture(t, map[string]string{"a.py": "x = 1\ny = x\n"})

	f.write(t, "a.py", "x = 2\ny = x\n")
	result, err := f.tracker.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)
	_, err = f.tracker.HandleChange(context.Background(), "a.py")
	require.NoError(t, err)

	require.Len(t, f.sink.results, 2)
	assert.Same(t, result, f.sink.results[0])

	entries, err := f.history.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1, "unchanged events are not recorded")
	assert.Equal(t, result.ID, entries[0].ID)
	assert.Equal(t, "content", entries[0].Classification)
	assert.Equal(t, []string{"a.x", "a.y"}, entries[0].Ordered)
}

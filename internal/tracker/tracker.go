package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/morozRed/ripple/internal/graph"
	"github.com/morozRed/ripple/internal/history"
	"github.com/morozRed/ripple/internal/ignore"
	"github.com/morozRed/ripple/internal/logging"
	"github.com/morozRed/ripple/internal/metrics"
	"github.com/morozRed/ripple/internal/parser"
	"github.com/morozRed/ripple/internal/state"
)

var (
	// ErrUnsupported is returned for paths no registered parser handles.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrOutsideRoot is returned for paths that do not live under the root.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// ResultSink receives every processed ImpactResult.
type ResultSink interface {
	ReportResult(r *ImpactResult)
}

// ImpactResult describes one processed change event.
type ImpactResult struct {
	ID                 string               `json:"id" yaml:"id"`
	Path               string               `json:"path" yaml:"path"`
	Classification     state.Classification `json:"classification" yaml:"classification"`
	ChangedLines       []int                `json:"changed_lines" yaml:"changed_lines"`
	ReorderedFunctions []string             `json:"reordered_functions,omitempty" yaml:"reordered_functions,omitempty"`
	Added              graph.Seed           `json:"added" yaml:"added"`
	Deleted            graph.Seed           `json:"deleted" yaml:"deleted"`
	Modified           graph.Seed           `json:"modified" yaml:"modified"`
	AffectedByDeletion graph.Seed           `json:"affected_by_deletion" yaml:"affected_by_deletion"`
	Ordered            graph.Seed           `json:"ordered" yaml:"ordered"`
	ParseError         string               `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
	Duration           time.Duration        `json:"duration_ns" yaml:"duration"`
}

// Impacted returns every name reported as modified or affected by deletion.
func (r *ImpactResult) Impacted() []string {
	return r.Modified.Union(r.AffectedByDeletion).All()
}

func newResult(path string, classification state.Classification) *ImpactResult {
	return &ImpactResult{
		ID:                 uuid.NewString(),
		Path:               path,
		Classification:     classification,
		ChangedLines:       []int{},
		Added:              emptySeed(),
		Deleted:            emptySeed(),
		Modified:           emptySeed(),
		AffectedByDeletion: emptySeed(),
		Ordered:            emptySeed(),
	}
}

func emptySeed() graph.Seed {
	return graph.Seed{Variables: []string{}, Functions: []string{}}
}

// Options wires a Tracker. Root, Registry, Snapshots and Graph are required.
type Options struct {
	Root      string
	Registry  *parser.Registry
	Ignore    *ignore.Matcher
	Snapshots *state.SnapshotStore
	Graph     *state.GraphStore
	History   *history.Store
	Sink      ResultSink
	Logger    *slog.Logger
	Workers   int
}

// Tracker runs the change pipeline. All operations are serialized so the
// whole-document stores never see concurrent writers.
type Tracker struct {
	mu        sync.Mutex
	root      string
	registry  *parser.Registry
	ignore    *ignore.Matcher
	snapshots *state.SnapshotStore
	graph     *state.GraphStore
	history   *history.Store
	sink      ResultSink
	logger    *slog.Logger
	workers   int
}

// New creates a tracker.
func New(opts Options) (*Tracker, error) {
	if opts.Registry == nil || opts.Snapshots == nil || opts.Graph == nil {
		return nil, errors.New("tracker requires a registry, a snapshot store and a graph store")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	matcher := opts.Ignore
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}
	return &Tracker{
		root:      root,
		registry:  opts.Registry,
		ignore:    matcher,
		snapshots: opts.Snapshots,
		graph:     opts.Graph,
		history:   opts.History,
		sink:      opts.Sink,
		logger:    logging.OrDiscard(opts.Logger),
		workers:   opts.Workers,
	}, nil
}

// Root returns the absolute project root.
func (t *Tracker) Root() string { return t.root }

// RelPath converts path to the slash-separated form used as a store key.
func (t *Tracker) RelPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.root, path)
	}
	rel, err := filepath.Rel(t.root, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return filepath.ToSlash(rel), nil
}

// Tracks reports whether path is a supported, non-ignored source file.
func (t *Tracker) Tracks(path string) bool {
	rel, err := t.RelPath(path)
	if err != nil {
		return false
	}
	return t.registry.Supports(rel) && !t.ignore.ShouldIgnore(rel, false)
}

// HandleChange processes one settled change of path.
func (t *Tracker) HandleChange(ctx context.Context, path string) (*ImpactResult, error) {
	rel, err := t.RelPath(path)
	if err != nil {
		return nil, err
	}
	if !t.registry.Supports(rel) {
		return nil, fmt.Errorf("%s: %w", rel, ErrUnsupported)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	content, lines, err := fileutil.ReadLines(filepath.Join(t.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			t.logger.Debug("changed file no longer exists", "path", rel)
			result := newResult(rel, state.ClassMissing)
			t.finish(ctx, result, start)
			return result, nil
		}
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	check := t.snapshots.Classify(rel, lines)
	result := newResult(rel, check.Classification)
	result.ChangedLines = check.ChangedLines

	switch {
	case check.Classification == state.ClassNone:
		t.finish(ctx, result, start)
		return result, nil
	case check.Classification.IsReorder():
		symbols := t.extract(rel, content, result)
		result.ReorderedFunctions = parser.FunctionsAt(symbols.Table, check.ChangedLines)
	default:
		// The snapshot stays uncommitted so a retry sees the same change.
		if err := t.analyze(rel, content, check, result); err != nil {
			return nil, fmt.Errorf("update graph for %s: %w", rel, err)
		}
	}

	if err := t.snapshots.Commit(rel, lines); err != nil {
		return result, fmt.Errorf("commit baseline for %s: %w", rel, err)
	}
	t.finish(ctx, result, start)
	return result, nil
}

// extract parses content and records a parse failure on result.
func (t *Tracker) extract(rel string, content []byte, result *ImpactResult) parser.FileSymbols {
	symbols, issue := t.registry.Extract(rel, content)
	if issue != nil {
		result.ParseError = issue.Message
		metrics.ParseFailure(issue.Language)
		t.logger.Warn("parse failed, using empty symbol table", "path", rel, "error", issue.Message)
	}
	return symbols
}

// analyze runs the content-change path: rebuild the file's table, diff it,
// trace deletions, expand modifications and replace the graph entry.
func (t *Tracker) analyze(rel string, content []byte, check state.Check, result *ImpactResult) error {
	previous := t.graph.FileGraph(rel)
	current := t.extract(rel, content, result).Table

	changes := graph.Diff(previous, current)
	added := changes.Added()
	result.Added = added
	result.Deleted = changes.Deleted()

	post := t.graph.Load()
	post.Replace(rel, current)
	result.AffectedByDeletion = graph.TraceDeletion(post, result.Deleted).Seed()

	touched := graph.Seed{
		Variables: current.DefinedAt(parser.SymbolVariable, check.ChangedLines),
		Functions: current.DefinedAt(parser.SymbolFunction, check.ChangedLines),
	}.Without(added)
	expanded := graph.Propagate(post, touched, graph.Options{Mode: graph.ModeCollapsed, File: rel})
	result.Modified = expanded.Seed().Without(added)

	seed := result.Modified.Union(result.AffectedByDeletion)
	ordered, err := t.graph.UpdatePartialGraph(rel, current, seed)
	if err != nil {
		return err
	}
	result.Ordered = ordered.Seed()
	return nil
}

// Remove handles a deleted source file: its graph and snapshot entries are
// dropped and every symbol it declared is traced as deleted.
func (t *Tracker) Remove(ctx context.Context, path string) (*ImpactResult, error) {
	rel, err := t.RelPath(path)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	table, ok, err := t.graph.Remove(rel)
	if err != nil {
		return nil, fmt.Errorf("remove %s from graph: %w", rel, err)
	}
	if err := t.snapshots.Remove(rel); err != nil {
		return nil, fmt.Errorf("remove %s snapshot: %w", rel, err)
	}
	if !ok {
		result := newResult(rel, state.ClassMissing)
		t.finish(ctx, result, start)
		return result, nil
	}

	result := newResult(rel, state.ClassRemoved)
	result.Deleted = graph.Seed{
		Variables: table.Names(parser.SymbolVariable),
		Functions: table.Names(parser.SymbolFunction),
	}
	post := t.graph.Load()
	result.AffectedByDeletion = graph.TraceDeletion(post, result.Deleted).Seed()
	result.Ordered = graph.Propagate(post, result.AffectedByDeletion, graph.Options{Mode: graph.ModeStrict}).Seed()
	t.finish(ctx, result, start)
	return result, nil
}

func (t *Tracker) finish(ctx context.Context, result *ImpactResult, start time.Time) {
	result.Duration = time.Since(start)
	impacted := result.Impacted()
	metrics.ObserveEvent(result.Classification.String(), result.Duration, len(impacted))

	if result.Classification != state.ClassNone && result.Classification != state.ClassMissing {
		t.record(ctx, result)
	}
	if t.sink != nil {
		t.sink.ReportResult(result)
	}
	t.logger.Info("processed change",
		"path", result.Path,
		"classification", result.Classification.String(),
		"impacted", len(impacted),
		"duration", result.Duration,
	)
}

func (t *Tracker) record(ctx context.Context, result *ImpactResult) {
	if t.history == nil {
		return
	}
	entry := history.Entry{
		ID:             result.ID,
		Path:           result.Path,
		Classification: result.Classification.String(),
		ChangedLines:   result.ChangedLines,
		Added:          len(result.Added.All()),
		Deleted:        len(result.Deleted.All()),
		Ordered:        append(append([]string{}, result.Ordered.Variables...), result.Ordered.Functions...),
		DeletionImpact: result.AffectedByDeletion.All(),
		Duration:       result.Duration,
		CreatedAt:      time.Now(),
	}
	if err := t.history.Record(ctx, entry); err != nil {
		t.logger.Warn("failed to record history", "path", result.Path, "error", err)
	}
}

// BaselineResult summarizes a full scan.
type BaselineResult struct {
	Files    int                 `json:"files"`
	Symbols  int                 `json:"symbols"`
	Issues   []parser.ParseIssue `json:"issues"`
	Duration time.Duration       `json:"duration_ns"`
}

// Baseline parses every tracked file, replaces the project graph and resets
// every line snapshot to the current content.
func (t *Tracker) Baseline(ctx context.Context, onFile func(path string, done int)) (*BaselineResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	parsed, err := t.registry.ParseDirectory(ctx, t.root, parser.ParseOptions{
		Ignore:  t.ignore,
		Workers: t.workers,
		OnFile:  onFile,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.root, err)
	}

	g := graph.New()
	snapshots := make(map[string][]string, len(parsed.Files))
	for _, file := range parsed.Files {
		g.Replace(file.Path, file.Table)
		snapshots[file.Path] = fileutil.SplitLines(file.Content)
	}
	for _, issue := range parsed.Issues {
		if issue.Severity == "error" {
			metrics.ParseFailure(issue.Language)
			t.logger.Warn("parse failed, using empty symbol table", "path", issue.File, "error", issue.Message)
		}
	}

	if err := t.graph.Save(g); err != nil {
		return nil, err
	}
	if err := t.snapshots.Replace(snapshots); err != nil {
		return nil, err
	}
	metrics.SetTrackedFiles(len(g))

	result := &BaselineResult{
		Files:    len(parsed.Files),
		Symbols:  g.SymbolCount(),
		Issues:   parsed.Issues,
		Duration: time.Since(start),
	}
	t.logger.Info("baseline complete", "files", result.Files, "symbols", result.Symbols, "duration", result.Duration)
	return result, nil
}

// FileStatus is a file's classification against its committed snapshot.
type FileStatus struct {
	Path           string               `json:"path"`
	Classification state.Classification `json:"classification"`
	ChangedLines   []int                `json:"changed_lines"`
}

// Status classifies every snapshotted or scannable file without committing
// anything.
func (t *Tracker) Status(ctx context.Context) ([]FileStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	files, _, err := t.registry.SourceFiles(t.root, t.ignore)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.root, err)
	}
	paths := make(map[string]bool, len(files))
	for _, file := range files {
		paths[file] = true
	}
	for _, file := range t.snapshots.Files() {
		paths[file] = true
	}

	out := make([]FileStatus, 0, len(paths))
	for _, rel := range fileutil.MapKeysSorted(paths) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, lines, err := fileutil.ReadLines(filepath.Join(t.root, filepath.FromSlash(rel)))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read %s: %w", rel, err)
			}
			out = append(out, FileStatus{Path: rel, Classification: state.ClassMissing, ChangedLines: []int{}})
			continue
		}
		check := t.snapshots.Classify(rel, lines)
		out = append(out, FileStatus{Path: rel, Classification: check.Classification, ChangedLines: check.ChangedLines})
	}
	return out, nil
}

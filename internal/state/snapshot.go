package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/morozRed/ripple/internal/logging"
)

// Classification is the outcome of comparing a file's new lines with its
// committed snapshot.
type Classification int

const (
	ClassNone Classification = iota
	ClassFileReorder
	ClassLocalReorder
	ClassContent
	ClassMissing
	ClassRemoved
)

func (c Classification) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassFileReorder:
		return "file-reorder"
	case ClassLocalReorder:
		return "local-reorder"
	case ClassContent:
		return "content"
	case ClassMissing:
		return "missing"
	case ClassRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText lets classifications serialize by name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IsReorder reports whether lines moved without any text changing.
func (c Classification) IsReorder() bool {
	return c == ClassFileReorder || c == ClassLocalReorder
}

// Check is a classification plus the 1-based line numbers that differ.
type Check struct {
	Classification Classification `json:"classification"`
	ChangedLines   []int          `json:"changed_lines"`
}

// Classify compares two line sequences. Lines are compared index by index
// after trimming surrounding whitespace. Indices past the end of either
// version count as changed. Blank lines are ignored when deciding whether
// lines were only moved.
func Classify(previous, current []string) Check {
	changed := changedIndices(previous, current)
	check := Check{ChangedLines: make([]int, 0, len(changed))}
	for _, idx := range changed {
		check.ChangedLines = append(check.ChangedLines, idx+1)
	}

	switch {
	case len(changed) == 0:
		check.Classification = ClassNone
	case len(previous) == len(current) && sameMultiset(nonBlank(previous), nonBlank(current)):
		check.Classification = ClassFileReorder
	case sameMultiset(window(previous, changed), window(current, changed)):
		check.Classification = ClassLocalReorder
	default:
		check.Classification = ClassContent
	}
	return check
}

func changedIndices(previous, current []string) []int {
	limit := len(current)
	if len(previous) > limit {
		limit = len(previous)
	}
	out := make([]int, 0)
	for i := 0; i < limit; i++ {
		if i >= len(previous) || i >= len(current) {
			out = append(out, i)
			continue
		}
		if strings.TrimSpace(previous[i]) != strings.TrimSpace(current[i]) {
			out = append(out, i)
		}
	}
	return out
}

// window returns the non-blank trimmed lines inside the smallest contiguous
// range covering every changed index.
func window(lines []string, changed []int) []string {
	lo, hi := changed[0], changed[len(changed)-1]+1
	if lo > len(lines) {
		lo = len(lines)
	}
	if hi > len(lines) {
		hi = len(lines)
	}
	return nonBlank(lines[lo:hi])
}

func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, line := range a {
		counts[line]++
	}
	for _, line := range b {
		counts[line]--
		if counts[line] < 0 {
			return false
		}
	}
	return true
}

// SnapshotStore keeps the last committed lines of every file. The whole
// document is rewritten on each commit.
type SnapshotStore struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
	lines   map[string][]string
}

// OpenSnapshotStore loads the snapshot document from backend. A missing or
// corrupt document yields an empty store.
func OpenSnapshotStore(backend Backend, logger *slog.Logger) (*SnapshotStore, error) {
	s := &SnapshotStore{
		backend: backend,
		logger:  logging.OrDiscard(logger),
		lines:   make(map[string][]string),
	}

	data, err := backend.Read(SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SnapshotKey, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	var doc map[string][]string
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("line snapshot is corrupt, starting empty", "backend", backend.Name(), "error", err)
		return s, nil
	}
	for path, lines := range doc {
		if lines == nil {
			lines = []string{}
		}
		s.lines[path] = lines
	}
	return s, nil
}

// Lines returns a copy of the committed lines for path.
func (s *SnapshotStore) Lines(path string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.lines[path]
	if !ok {
		return nil, false
	}
	return append([]string{}, lines...), true
}

// Classify compares current with path's committed lines. An unknown path is
// compared against an empty file.
func (s *SnapshotStore) Classify(path string, current []string) Check {
	previous, _ := s.Lines(path)
	return Classify(previous, current)
}

// Commit records lines as path's baseline and persists the store.
func (s *SnapshotStore) Commit(path string, lines []string) error {
	return s.CommitAll(map[string][]string{path: lines})
}

// CommitAll records several baselines with a single write. The in-memory
// state only changes once the write succeeds.
func (s *SnapshotStore) CommitAll(files map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string][]string, len(s.lines)+len(files))
	for path, lines := range s.lines {
		next[path] = lines
	}
	for path, lines := range files {
		next[path] = append([]string{}, lines...)
	}
	return s.swapLocked(next)
}

// Replace discards every snapshot and stores files instead.
func (s *SnapshotStore) Replace(files map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string][]string, len(files))
	for path, lines := range files {
		next[path] = append([]string{}, lines...)
	}
	return s.swapLocked(next)
}

// Remove drops path's snapshot. Unknown paths are a no-op.
func (s *SnapshotStore) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[path]; !ok {
		return nil
	}
	next := make(map[string][]string, len(s.lines))
	for p, lines := range s.lines {
		if p != path {
			next[p] = lines
		}
	}
	return s.swapLocked(next)
}

// Files returns the paths with a committed snapshot, sorted.
func (s *SnapshotStore) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]string, 0, len(s.lines))
	for path := range s.lines {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// swapLocked persists next and installs it as the committed state.
func (s *SnapshotStore) swapLocked(next map[string][]string) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", SnapshotKey, err)
	}
	if err := s.backend.Write(SnapshotKey, append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", SnapshotKey, err)
	}
	s.lines = next
	return nil
}

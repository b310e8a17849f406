package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morozRed/ripple/internal/graph"
	"github.com/morozRed/ripple/internal/logging"
	"github.com/morozRed/ripple/internal/parser"
)

// OrderReporter receives the ordered propagation produced by
// UpdatePartialGraph.
type OrderReporter interface {
	ReportOrder(path string, p graph.Propagation)
}

// GraphStore persists the ProjectGraph as one document. Every operation reads
// or rewrites the whole document under a single lock.
type GraphStore struct {
	mu       sync.Mutex
	backend  Backend
	logger   *slog.Logger
	reporter OrderReporter
}

// NewGraphStore creates a store over backend. reporter may be nil.
func NewGraphStore(backend Backend, logger *slog.Logger, reporter OrderReporter) *GraphStore {
	return &GraphStore{backend: backend, logger: logging.OrDiscard(logger), reporter: reporter}
}

// SetReporter replaces the side channel used by UpdatePartialGraph.
func (s *GraphStore) SetReporter(reporter OrderReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporter = reporter
}

// Load returns the stored graph. A missing, unreadable or corrupt document
// yields an empty graph.
func (s *GraphStore) Load() graph.ProjectGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save overwrites the stored graph with g.
func (s *GraphStore) Save(g graph.ProjectGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(g)
}

// FileGraph returns path's table, or an empty two-kind table.
func (s *GraphStore) FileGraph(path string) parser.SymbolTable {
	return s.Load().FileGraph(path)
}

// UpdatePartialGraph replaces path's entry with table, persists the graph,
// and runs the ordered strict propagation of seed over the result. The
// propagation is handed to the reporter and returned.
func (s *GraphStore) UpdatePartialGraph(path string, table parser.SymbolTable, seed graph.Seed) (graph.Propagation, error) {
	s.mu.Lock()
	g := s.loadLocked()
	g.Replace(path, table)
	if err := s.saveLocked(g); err != nil {
		s.mu.Unlock()
		return graph.Propagation{}, err
	}
	reporter := s.reporter
	s.mu.Unlock()

	ordered := graph.Propagate(g, seed, graph.Options{Mode: graph.ModeStrict})
	if reporter != nil {
		reporter.ReportOrder(path, ordered)
	}
	return ordered, nil
}

// Remove drops path's entry and returns the table it held.
func (s *GraphStore) Remove(path string) (parser.SymbolTable, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.loadLocked()
	table, ok := g[path]
	if !ok {
		return parser.NewSymbolTable(), false, nil
	}
	g.Remove(path)
	if err := s.saveLocked(g); err != nil {
		return parser.NewSymbolTable(), false, err
	}
	return table, true, nil
}

func (s *GraphStore) loadLocked() graph.ProjectGraph {
	data, err := s.backend.Read(GraphKey)
	if err != nil {
		s.logger.Warn("graph store unreadable, using empty graph", "backend", s.backend.Name(), "error", err)
		return graph.New()
	}
	if len(data) == 0 {
		return graph.New()
	}
	g := graph.New()
	if err := json.Unmarshal(data, &g); err != nil {
		s.logger.Warn("graph store is corrupt, using empty graph", "backend", s.backend.Name(), "error", err)
		return graph.New()
	}
	if g == nil {
		return graph.New()
	}
	g.Normalize()
	return g
}

func (s *GraphStore) saveLocked(g graph.ProjectGraph) error {
	if g == nil {
		g = graph.New()
	}
	g = g.Clone()
	g.Normalize()
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", GraphKey, err)
	}
	if err := s.backend.Write(GraphKey, append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", GraphKey, err)
	}
	return nil
}

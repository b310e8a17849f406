package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/morozRed/ripple/internal/config"
	"github.com/morozRed/ripple/internal/history"
	"github.com/morozRed/ripple/internal/ignore"
	"github.com/morozRed/ripple/internal/languages"
	"github.com/morozRed/ripple/internal/logging"
	"github.com/morozRed/ripple/internal/parser"
	"github.com/morozRed/ripple/internal/report"
	"github.com/morozRed/ripple/internal/state"
	"github.com/morozRed/ripple/internal/tracker"
	"github.com/spf13/cobra"
)

// workspace is everything a command needs to run the change pipeline for
// one project root.
type workspace struct {
	root      string
	cfg       *config.Config
	logger    *slog.Logger
	registry  *parser.Registry
	ignore    *ignore.Matcher
	backend   state.Backend
	snapshots *state.SnapshotStore
	graph     *state.GraphStore
	history   *history.Store
	reporter  *report.Reporter
	tracker   *tracker.Tracker
}

type workspaceOptions struct {
	// Report attaches a reporter writing results to Out in Format.
	Report bool
	Format report.Format
	Out    io.Writer
	// SkipHistory leaves the history database closed even when enabled.
	SkipHistory bool
}

func resolveRoot(cmd *cobra.Command) (string, error) {
	root, err := OptionalStringFlag(cmd, "root")
	if err != nil {
		return "", err
	}
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	return abs, nil
}

// loadConfig reads the project config and applies the --log-level override.
func loadConfig(cmd *cobra.Command, root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	level, err := OptionalStringFlag(cmd, "log-level")
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
}

func openBackend(cfg *config.Config, logger *slog.Logger) (state.Backend, error) {
	switch cfg.Store.Backend {
	case "badger":
		return state.OpenBadger(state.BadgerConfig{
			Path:   filepath.Join(cfg.StateDir(), "badger"),
			Logger: logger.With("component", "badger"),
		})
	default:
		if err := os.MkdirAll(cfg.StateDir(), 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		return state.NewFileBackend(cfg.StateDir()), nil
	}
}

func openWorkspace(cmd *cobra.Command, opts workspaceOptions) (*workspace, error) {
	root, err := resolveRoot(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	matcher, err := ignore.New(root, cfg.Ignore)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		registry: languages.NewDefaultRegistry(),
		ignore:   matcher,
		backend:  backend,
	}

	ws.snapshots, err = state.OpenSnapshotStore(backend, logger)
	if err != nil {
		ws.Close()
		return nil, err
	}
	ws.graph = state.NewGraphStore(backend, logger, nil)

	if cfg.History.Enabled && !opts.SkipHistory {
		ws.history, err = history.Open(cfg.Resolve(cfg.History.Path), logger)
		if err != nil {
			ws.Close()
			return nil, err
		}
	}

	var sink tracker.ResultSink
	if opts.Report {
		out := opts.Out
		if out == nil {
			out = cmd.OutOrStdout()
		}
		ws.reporter = report.NewReporter(out, opts.Format, cfg.Resolve(cfg.Report.Output), logger)
		ws.graph.SetReporter(ws.reporter)
		sink = ws.reporter
	}

	ws.tracker, err = tracker.New(tracker.Options{
		Root:      root,
		Registry:  ws.registry,
		Ignore:    matcher,
		Snapshots: ws.snapshots,
		Graph:     ws.graph,
		History:   ws.history,
		Sink:      sink,
		Logger:    logger,
		Workers:   cfg.Workers,
	})
	if err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

// Close releases the backend and the history database.
func (ws *workspace) Close() error {
	var errs []error
	if ws.history != nil {
		errs = append(errs, ws.history.Close())
	}
	if ws.backend != nil {
		errs = append(errs, ws.backend.Close())
	}
	return errors.Join(errs...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morozRed/ripple/internal/metrics"
	"github.com/morozRed/ripple/internal/tracker"
	"github.com/morozRed/ripple/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func RunWatch(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	format, err := ParseReportFormat(cmd, cfg.Report.Format)
	if err != nil {
		return err
	}
	metricsAddr, err := OptionalStringFlag(cmd, "metrics-addr")
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	debounce := cfg.Watch.Debounce
	if cmd.Flags().Lookup("debounce") != nil && cmd.Flags().Changed("debounce") {
		debounce, err = cmd.Flags().GetDuration("debounce")
		if err != nil {
			return fmt.Errorf("failed to read --debounce flag: %w", err)
		}
	}
	rescan, err := OptionalBoolFlag(cmd, "rescan", false)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd, workspaceOptions{Report: true, Format: format})
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rescan || len(ws.snapshots.Files()) == 0 {
		summary, err := runBaseline(cmd, ws, 0, false)
		if err != nil {
			return err
		}
		ws.logger.Info("baseline ready", "files", summary.Files, "symbols", summary.Symbols)
	}

	w, err := watcher.New(watcher.Options{
		Root:     ws.root,
		Debounce: debounce,
		Ignore:   ws.ignore,
		Filter:   ws.tracker.Tracks,
		Logger:   ws.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (debounce %s)\n", ws.root, debounce)

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, metricsAddr, ws.logger)
		})
	}
	g.Go(func() error {
		return w.Run(gctx, func(ctx context.Context, ev watcher.Event) {
			handleWatchEvent(ctx, ws, ev)
		})
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func handleWatchEvent(ctx context.Context, ws *workspace, ev watcher.Event) {
	start := time.Now()
	var err error
	switch ev.Kind {
	case watcher.EventRemoved:
		_, err = ws.tracker.Remove(ctx, ev.Path)
	default:
		_, err = ws.tracker.HandleChange(ctx, ev.Path)
	}
	if err == nil {
		return
	}
	if errors.Is(err, tracker.ErrUnsupported) || errors.Is(err, tracker.ErrOutsideRoot) {
		ws.logger.Debug("ignoring event", "path", ev.Path, "error", err)
		return
	}
	ws.logger.Error("failed to process change",
		"path", ev.Path,
		"kind", ev.Kind.String(),
		"elapsed", time.Since(start),
		"error", err,
	)
}

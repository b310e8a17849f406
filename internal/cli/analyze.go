package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// RunAnalyze processes each named file once, as if the watcher had reported
// a settled change for it.
func RunAnalyze(cmd *cobra.Command, args []string) error {
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

	ws, err := openWorkspace(cmd, workspaceOptions{Report: true, Format: format})
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := commandContext(cmd)
	var errs []error
	for _, arg := range args {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(ws.root, path)
		}

		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if _, err := ws.tracker.Remove(ctx, path); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if _, err := ws.tracker.HandleChange(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: %w", arg, err))
		}
	}
	return errors.Join(errs...)
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/morozRed/ripple/internal/config"
	"github.com/spf13/cobra"
)

func RunInit(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(filepath.Join(rootPath, config.Dir), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.Dir, err)
	}
	configPath, created, err := config.WriteDefault(rootPath)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "Wrote default config to %s\n", configPath)
	}
	fmt.Fprintf(out, "Initialized ripple at %s\n", filepath.Join(rootPath, config.Dir))

	noScan, err := OptionalBoolFlag(cmd, "no-scan", false)
	if err != nil {
		return err
	}
	if noScan {
		return nil
	}

	ws, err := openWorkspace(cmd, workspaceOptions{SkipHistory: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	files, _, err := ws.registry.SourceFiles(ws.root, ws.ignore)
	if err != nil {
		return fmt.Errorf("failed to scan files: %w", err)
	}
	if len(files) == 0 {
		return nil
	}

	fmt.Fprintln(out, "Building initial baseline...")
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	summary, err := runBaseline(cmd, ws, len(files), asJSON)
	if err != nil {
		return err
	}
	summary.Mode = "init"
	return PrintRunSummary(out, summary, asJSON)
}

func RunScan(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd, workspaceOptions{SkipHistory: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	summary, err := runBaseline(cmd, ws, 0, asJSON)
	if err != nil {
		return err
	}
	return PrintRunSummary(cmd.OutOrStdout(), summary, asJSON)
}

// runBaseline rebuilds the project graph and every line snapshot from the
// files on disk.
func runBaseline(cmd *cobra.Command, ws *workspace, total int, asJSON bool) (RunSummary, error) {
	start := time.Now()
	progress := newScanProgress("scan", total, asJSON)
	count := 0
	result, err := ws.tracker.Baseline(commandContext(cmd), func(path string, done int) {
		count = done
		progress.Update(path, done)
	})
	if err != nil {
		return RunSummary{}, err
	}
	progress.Done(count)

	summary := RunSummary{
		Mode:       "scan",
		RootPath:   ws.root,
		StateDir:   ws.cfg.StateDir(),
		Backend:    ws.backend.Name(),
		Files:      result.Files,
		Symbols:    result.Symbols,
		Issues:     len(result.Issues),
		DurationMS: time.Since(start).Milliseconds(),
	}
	for _, issue := range result.Issues {
		summary.IssueFiles = append(summary.IssueFiles, issue.File)
	}
	return summary, nil
}

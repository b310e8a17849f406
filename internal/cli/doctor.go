package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/morozRed/ripple/internal/config"
	"github.com/spf13/cobra"
)

func RunDoctor(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	summary := DoctorSummary{
		Mode:       "doctor",
		RootPath:   rootPath,
		ConfigFile: filepath.Join(rootPath, config.Dir, config.FileName),
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(summary.ConfigFile); err != nil {
		summary.Missing = append(summary.Missing, config.FileName)
		summary.Suggestions = append(summary.Suggestions, "run ripple init")
	}
	cfg, err := loadConfig(cmd, rootPath)
	if err != nil {
		summary.Missing = append(summary.Missing, "valid config")
		summary.Suggestions = append(summary.Suggestions, fmt.Sprintf("fix %s: %v", summary.ConfigFile, err))
		return PrintDoctorSummary(out, summary, asJSON)
	}
	summary.StateDir = cfg.StateDir()
	summary.Backend = cfg.Store.Backend

	ws, err := openWorkspace(cmd, workspaceOptions{})
	if err != nil {
		summary.Missing = append(summary.Missing, "readable state")
		summary.Suggestions = append(summary.Suggestions, fmt.Sprintf("state could not be opened: %v", err))
		return PrintDoctorSummary(out, summary, asJSON)
	}
	defer ws.Close()

	if ws.history != nil {
		summary.HistoryPath = ws.history.Path()
	}
	summary.Extensions = ws.registry.SupportedExtensions()
	g := ws.graph.Load()
	summary.TrackedFiles = len(g)
	summary.Symbols = g.SymbolCount()
	summary.Snapshots = len(ws.snapshots.Files())
	if summary.Snapshots == 0 {
		summary.Missing = append(summary.Missing, "baseline")
		summary.Suggestions = append(summary.Suggestions, "run ripple scan")
	}

	statuses, err := ws.tracker.Status(commandContext(cmd))
	if err != nil {
		return err
	}
	summary.Stale = len(dirtyFiles(statuses))
	if summary.Stale > 0 && summary.Snapshots > 0 {
		summary.Suggestions = append(summary.Suggestions, "run ripple analyze on changed files or ripple scan to rebaseline")
	}

	summary.Clean = summary.Stale == 0
	summary.Healthy = len(summary.Missing) == 0
	return PrintDoctorSummary(out, summary, asJSON)
}

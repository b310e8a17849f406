package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/morozRed/ripple/internal/tracker"
)

type RunSummary struct {
	Mode       string   `json:"mode"`
	RootPath   string   `json:"root_path"`
	StateDir   string   `json:"state_dir,omitempty"`
	Backend    string   `json:"backend,omitempty"`
	Files      int      `json:"files"`
	Symbols    int      `json:"symbols"`
	Issues     int      `json:"issues"`
	DurationMS int64    `json:"duration_ms"`
	IssueFiles []string `json:"issue_files,omitempty"`
}

type StatusSummary struct {
	Mode     string               `json:"mode"`
	RootPath string               `json:"root_path"`
	Clean    bool                 `json:"clean"`
	Tracked  int                  `json:"tracked"`
	Files    []tracker.FileStatus `json:"files"`
}

type DoctorSummary struct {
	Mode         string   `json:"mode"`
	RootPath     string   `json:"root_path"`
	ConfigFile   string   `json:"config_file"`
	StateDir     string   `json:"state_dir"`
	Backend      string   `json:"backend"`
	HistoryPath  string   `json:"history_path,omitempty"`
	Extensions   []string `json:"extensions"`
	Healthy      bool     `json:"healthy"`
	Clean        bool     `json:"clean"`
	TrackedFiles int      `json:"tracked_files"`
	Symbols      int      `json:"symbols"`
	Snapshots    int      `json:"snapshots"`
	Stale        int      `json:"stale"`
	Missing      []string `json:"missing,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

func PrintRunSummary(w io.Writer, summary RunSummary, asJSON bool) error {
	if asJSON {
		return fileutil.WriteJSON(w, summary)
	}

	fmt.Fprintf(w, "%s complete in %dms\n", summary.Mode, summary.DurationMS)
	if summary.StateDir != "" {
		fmt.Fprintf(w, "state: %s (%s)\n", summary.StateDir, summary.Backend)
	}
	fmt.Fprintf(w, "files=%d symbols=%d issues=%d\n", summary.Files, summary.Symbols, summary.Issues)
	if len(summary.IssueFiles) > 0 {
		fmt.Fprintf(w, "parse issues (%d): %s\n", len(summary.IssueFiles), SummarizePaths(summary.IssueFiles, 8))
	}
	return nil
}

func PrintStatusSummary(w io.Writer, summary StatusSummary, asJSON bool) error {
	if asJSON {
		return fileutil.WriteJSON(w, summary)
	}

	if summary.Clean {
		fmt.Fprintf(w, "status: clean (%d tracked files)\n", summary.Tracked)
		return nil
	}
	fmt.Fprintf(w, "status: %d of %d files differ from their baseline\n", len(summary.Files), summary.Tracked)
	for _, file := range summary.Files {
		line := fmt.Sprintf("  %-14s %s", file.Classification.String(), file.Path)
		if len(file.ChangedLines) > 0 {
			line += " lines " + joinLines(file.ChangedLines, 12)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func PrintDoctorSummary(w io.Writer, summary DoctorSummary, asJSON bool) error {
	if asJSON {
		return fileutil.WriteJSON(w, summary)
	}

	health := "healthy"
	if !summary.Healthy {
		health = "unhealthy"
	}
	fmt.Fprintf(w, "doctor: %s\n", health)
	fmt.Fprintf(w, "config: %s\n", summary.ConfigFile)
	fmt.Fprintf(w, "state: %s (%s)\n", summary.StateDir, summary.Backend)
	if summary.HistoryPath != "" {
		fmt.Fprintf(w, "history: %s\n", summary.HistoryPath)
	}
	if len(summary.Extensions) > 0 {
		fmt.Fprintf(w, "extensions: %s\n", strings.Join(summary.Extensions, ", "))
	}
	fmt.Fprintf(w, "graph: files=%d symbols=%d snapshots=%d stale=%d\n", summary.TrackedFiles, summary.Symbols, summary.Snapshots, summary.Stale)
	if len(summary.Missing) > 0 {
		fmt.Fprintf(w, "missing: %s\n", strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Fprintf(w, "suggestion: %s\n", suggestion)
	}
	return nil
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}

func joinLines(lines []int, max int) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%d", line))
	}
	return SummarizePaths(parts, max)
}

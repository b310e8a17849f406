package cli

import (
	"github.com/morozRed/ripple/internal/state"
	"github.com/morozRed/ripple/internal/tracker"
	"github.com/spf13/cobra"
)

// RunStatus classifies every file against its baseline without committing
// or analyzing anything.
func RunStatus(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd, workspaceOptions{SkipHistory: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	statuses, err := ws.tracker.Status(commandContext(cmd))
	if err != nil {
		return err
	}
	summary := StatusSummary{
		Mode:     "status",
		RootPath: ws.root,
		Tracked:  len(statuses),
		Files:    dirtyFiles(statuses),
	}
	summary.Clean = len(summary.Files) == 0
	return PrintStatusSummary(cmd.OutOrStdout(), summary, asJSON)
}

func dirtyFiles(statuses []tracker.FileStatus) []tracker.FileStatus {
	out := make([]tracker.FileStatus, 0)
	for _, status := range statuses {
		if status.Classification != state.ClassNone {
			out = append(out, status)
		}
	}
	return out
}

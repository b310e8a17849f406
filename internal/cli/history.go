package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/spf13/cobra"
)

// RunHistory lists recently processed change events, newest first.
func RunHistory(cmd *cobra.Command, args []string) error {
	limit, err := OptionalIntFlag(cmd, "limit", 20)
	if err != nil {
		return err
	}
	asJSONL, err := OptionalBoolFlag(cmd, "jsonl", false)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd, workspaceOptions{})
	if err != nil {
		return err
	}
	defer ws.Close()
	if ws.history == nil {
		return errors.New("history is disabled (set history.enabled in .ripple/config.yaml)")
	}

	entries, err := ws.history.Recent(commandContext(cmd), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSONL {
		return fileutil.WriteJSONL(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no recorded changes")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintf(out, "%s %-14s %s added=%d deleted=%d impacted=%d (%s)\n",
			entry.CreatedAt.Local().Format(time.DateTime),
			entry.Classification,
			entry.Path,
			entry.Added,
			entry.Deleted,
			len(entry.Ordered),
			entry.Duration.Round(time.Microsecond),
		)
		if len(entry.DeletionImpact) > 0 {
			fmt.Fprintf(out, "  affected by deletion: %s\n", SummarizePaths(entry.DeletionImpact, 8))
		}
	}
	return nil
}

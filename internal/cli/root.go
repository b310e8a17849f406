package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ripple",
		Short: "Track how source changes ripple through a project's symbols",
		Long: `Ripple keeps a per-file dependency graph of variables and functions and,
whenever a file changes, reports what was added, deleted, modified, and
which symbols elsewhere are affected, ordered from root cause outward.

State is kept in .ripple/ at the project root.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (default: from config)")

	// Setup Commands
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create .ripple/ with a default config and build the baseline",
		Args:  cobra.NoArgs,
		RunE:  RunInit,
	}
	initCmd.Flags().Bool("no-scan", false, "Create the directory and config only, skip the baseline scan")
	initCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Rebuild the project graph and line baselines from disk",
		Args:  cobra.NoArgs,
		RunE:  RunScan,
	}
	scanCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	// Change Commands
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Process changes to the given files once and report their impact",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunAnalyze,
	}
	analyzeCmd.Flags().String("format", "", "Report format: text|json|yaml (default: from config)")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and report the impact of every saved change",
		Args:  cobra.NoArgs,
		RunE:  RunWatch,
	}
	watchCmd.Flags().String("format", "", "Report format: text|json|yaml (default: from config)")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before a change is processed")
	watchCmd.Flags().Bool("rescan", false, "Rebuild the baseline before watching")

	// Inspect Commands
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which files differ from their baseline",
		Args:  cobra.NoArgs,
		RunE:  RunStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	symbolsCmd := &cobra.Command{
		Use:   "symbols <file>",
		Short: "Print the symbol table extracted from a file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSymbols,
	}
	symbolsCmd.Flags().Bool("json", false, "Print the table as JSON")
	symbolsCmd.Flags().Bool("stored", false, "Print the table held in the project graph instead of re-parsing")

	impactCmd := &cobra.Command{
		Use:   "impact <name>...",
		Short: "Propagate qualified symbol names through the stored graph",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunImpact,
	}
	impactCmd.Flags().String("mode", "strict", "Propagation mode: strict|collapsed")
	impactCmd.Flags().String("file", "", "Restrict collapsed propagation to one file")
	impactCmd.Flags().String("kind", "", "Kind of every name: var|func (default: looked up in the graph)")
	impactCmd.Flags().Bool("json", false, "Print machine-readable impact")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recently processed changes",
		Args:  cobra.NoArgs,
		RunE:  RunHistory,
	}
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries (0 for all)")
	historyCmd.Flags().Bool("jsonl", false, "Print one JSON document per entry")

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate ripple setup and baseline freshness",
		Args:  cobra.NoArgs,
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ripple %s\n", version)
		},
	}

	rootCmd.AddCommand(
		initCmd,
		scanCmd,
		analyzeCmd,
		watchCmd,
		statusCmd,
		symbolsCmd,
		impactCmd,
		historyCmd,
		doctorCmd,
		versionCmd,
	)

	return rootCmd
}

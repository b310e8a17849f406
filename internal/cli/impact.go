package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/morozRed/ripple/internal/graph"
	"github.com/morozRed/ripple/internal/parser"
	"github.com/spf13/cobra"
)

type impactOutput struct {
	Mode      string     `json:"mode"`
	File      string     `json:"file,omitempty"`
	Seed      graph.Seed `json:"seed"`
	Unknown   []string   `json:"unknown,omitempty"`
	Variables []string   `json:"variables"`
	Functions []string   `json:"functions"`
}

// RunImpact propagates the named symbols through the stored project graph
// without touching any file or baseline.
func RunImpact(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	modeRaw, err := OptionalStringFlag(cmd, "mode")
	if err != nil {
		return err
	}
	mode, err := graph.ParseMode(modeRaw)
	if err != nil {
		return err
	}
	kindRaw, err := OptionalStringFlag(cmd, "kind")
	if err != nil {
		return err
	}
	file, err := OptionalStringFlag(cmd, "file")
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd, workspaceOptions{SkipHistory: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	if file != "" {
		if file, err = ws.tracker.RelPath(file); err != nil {
			return err
		}
	}

	g := ws.graph.Load()
	seed, unknown, err := buildSeed(g, args, kindRaw)
	if err != nil {
		return err
	}
	for _, name := range unknown {
		ws.logger.Warn("symbol not found in graph, seeding both kinds", "name", name)
	}

	result := graph.Propagate(g, seed, graph.Options{Mode: mode, File: file})
	out := impactOutput{
		Mode:      mode.String(),
		File:      file,
		Seed:      seed,
		Unknown:   unknown,
		Variables: nonNil(result.Variables),
		Functions: nonNil(result.Functions),
	}
	if asJSON {
		return fileutil.WriteJSON(cmd.OutOrStdout(), out)
	}
	return printImpact(cmd.OutOrStdout(), out, args)
}

// buildSeed splits names by kind. Without an explicit kind each name takes
// the kind it is declared with; undeclared names seed both kinds.
func buildSeed(g graph.ProjectGraph, names []string, kindRaw string) (graph.Seed, []string, error) {
	seed := graph.Seed{Variables: []string{}, Functions: []string{}}
	var unknown []string

	if kindRaw != "" {
		kind, err := parser.ParseSymbolKind(kindRaw)
		if err != nil {
			return seed, nil, err
		}
		for _, name := range names {
			seed = addToSeed(seed, kind, name)
		}
		return seed, nil, nil
	}

	for _, name := range names {
		kind, ok := g.KindOf(name)
		if !ok {
			unknown = append(unknown, name)
			seed = addToSeed(seed, parser.SymbolVariable, name)
			seed = addToSeed(seed, parser.SymbolFunction, name)
			continue
		}
		seed = addToSeed(seed, kind, name)
	}
	return seed, unknown, nil
}

func addToSeed(seed graph.Seed, kind parser.SymbolKind, name string) graph.Seed {
	if kind == parser.SymbolFunction {
		seed.Functions = append(seed.Functions, name)
	} else {
		seed.Variables = append(seed.Variables, name)
	}
	return seed
}

func printImpact(w io.Writer, out impactOutput, names []string) error {
	header := fmt.Sprintf("impact of %s (%s)", strings.Join(names, ", "), out.Mode)
	if out.File != "" {
		header += " in " + out.File
	}
	fmt.Fprintln(w, header+":")
	if len(out.Variables) == 0 && len(out.Functions) == 0 {
		fmt.Fprintln(w, "  nothing affected")
		return nil
	}

	sep := ", "
	if out.Mode == graph.ModeStrict.String() {
		sep = " -> "
	}
	if len(out.Variables) > 0 {
		fmt.Fprintf(w, "  variables: %s\n", strings.Join(out.Variables, sep))
	}
	if len(out.Functions) > 0 {
		fmt.Fprintf(w, "  functions: %s\n", strings.Join(out.Functions, sep))
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

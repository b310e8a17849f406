package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/morozRed/ripple/internal/parser"
	"github.com/morozRed/ripple/internal/tracker"
	"github.com/spf13/cobra"
)

type symbolsOutput struct {
	Path     string             `json:"path"`
	Source   string             `json:"source"`
	Language string             `json:"language,omitempty"`
	Table    parser.SymbolTable `json:"table"`
}

// RunSymbols prints the symbol table extracted from a file. With --stored it
// prints the table held in the project graph instead.
func RunSymbols(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	stored, err := OptionalBoolFlag(cmd, "stored", false)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd, workspaceOptions{SkipHistory: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	rel, err := ws.tracker.RelPath(args[0])
	if err != nil {
		return err
	}

	result := symbolsOutput{Path: rel, Source: "file"}
	if stored {
		result.Source = "graph"
		result.Table = ws.graph.FileGraph(rel)
	} else {
		symbols, err := ws.registry.ParseFile(filepath.Join(ws.root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		if symbols == nil {
			return fmt.Errorf("%s: %w", rel, tracker.ErrUnsupported)
		}
		result.Language = symbols.Language
		result.Table = symbols.Table
	}

	if asJSON {
		return fileutil.WriteJSON(cmd.OutOrStdout(), result)
	}
	return printSymbolTable(cmd.OutOrStdout(), result)
}

func printSymbolTable(w io.Writer, result symbolsOutput) error {
	fmt.Fprintf(w, "%s (%s)\n", result.Path, result.Source)
	for _, kind := range []parser.SymbolKind{parser.SymbolVariable, parser.SymbolFunction} {
		symbols := result.Table.Symbols(kind)
		fmt.Fprintf(w, "%s (%d):\n", kindHeading(kind), len(symbols))
		for _, name := range result.Table.Names(kind) {
			sym := symbols[name]
			line := "  " + name
			if len(sym.Params) > 0 {
				line += "(" + strings.Join(sym.Params, ", ") + ")"
			}
			if len(sym.Spans) > 0 {
				line += " " + formatSpans(sym.Spans)
			}
			if len(sym.DependsOn) > 0 {
				line += " <- " + strings.Join(sym.DependsOn, ", ")
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func kindHeading(kind parser.SymbolKind) string {
	if kind == parser.SymbolFunction {
		return "functions"
	}
	return "variables"
}

func formatSpans(spans []parser.Span) string {
	parts := make([]string, 0, len(spans))
	for _, span := range spans {
		if span.Start == span.End {
			parts = append(parts, fmt.Sprintf("%d", span.Start))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d-%d", span.Start, span.End))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

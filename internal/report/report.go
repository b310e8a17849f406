package report

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/morozRed/ripple/internal/fileutil"
	"github.com/morozRed/ripple/internal/graph"
	"github.com/morozRed/ripple/internal/logging"
	"github.com/morozRed/ripple/internal/state"
	"github.com/morozRed/ripple/internal/tracker"
	"gopkg.in/yaml.v3"
)

// Format selects how results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected text|json|yaml)", value)
	}
}

// Render writes one result. The text form leaves out the ordered impact,
// which RenderOrder prints.
func Render(w io.Writer, result *tracker.ImpactResult, format Format) error {
	switch format {
	case FormatJSON:
		return fileutil.WriteJSON(w, result)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(result); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return renderText(w, result)
	}
}

func renderText(w io.Writer, r *tracker.ImpactResult) error {
	var b strings.Builder
	switch r.Classification {
	case state.ClassNone:
		fmt.Fprintf(&b, "%s: no changes\n", r.Path)
		_, err := io.WriteString(w, b.String())
		return err
	case state.ClassMissing:
		fmt.Fprintf(&b, "%s: not found, nothing to analyze\n", r.Path)
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "change in %s [%s] (%s)\n", r.Path, r.Classification, r.Duration.Round(time.Microsecond))
	if len(r.ChangedLines) > 0 {
		fmt.Fprintf(&b, "  changed lines: %s\n", joinInts(r.ChangedLines))
	}
	switch r.Classification {
	case state.ClassFileReorder:
		b.WriteString("  line order changed, no content modification\n")
	case state.ClassLocalReorder:
		b.WriteString("  lines reordered within a block\n")
	}
	if len(r.ReorderedFunctions) > 0 {
		fmt.Fprintf(&b, "  in functions: %s\n", strings.Join(r.ReorderedFunctions, ", "))
	}
	if r.ParseError != "" {
		fmt.Fprintf(&b, "  parse error: %s\n", r.ParseError)
	}
	writeSeed(&b, "added", r.Added)
	writeSeed(&b, "deleted", r.Deleted)
	writeSeed(&b, "affected by deletion", r.AffectedByDeletion)
	writeSeed(&b, "modified", r.Modified)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSeed(b *strings.Builder, label string, seed graph.Seed) {
	if seed.Empty() {
		return
	}
	fmt.Fprintf(b, "  %s:\n", label)
	if len(seed.Variables) > 0 {
		fmt.Fprintf(b, "    variables: %s\n", strings.Join(seed.Variables, ", "))
	}
	if len(seed.Functions) > 0 {
		fmt.Fprintf(b, "    functions: %s\n", strings.Join(seed.Functions, ", "))
	}
}

// RenderOrder writes the ordered impact, root causes first.
func RenderOrder(w io.Writer, p graph.Propagation) error {
	if p.Empty() {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  ordered impact (%s):\n", p.Mode)
	if len(p.Variables) > 0 {
		fmt.Fprintf(&b, "    variables: %s\n", strings.Join(p.Variables, " -> "))
	}
	if len(p.Functions) > 0 {
		fmt.Fprintf(&b, "    functions: %s\n", strings.Join(p.Functions, " -> "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// Reporter prints results and ordered impact to Out and appends the text
// form of both to an output log. It serves as the graph store's order
// channel and the tracker's result sink.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	format  Format
	logPath string
	logger  *slog.Logger
	pending map[string]graph.Propagation
}

// NewReporter creates a reporter. An empty logPath disables the output log.
func NewReporter(out io.Writer, format Format, logPath string, logger *slog.Logger) *Reporter {
	return &Reporter{
		out:     out,
		format:  format,
		logPath: logPath,
		logger:  logging.OrDiscard(logger),
		pending: make(map[string]graph.Propagation),
	}
}

// ReportOrder holds the ordered impact until the result for path arrives.
func (r *Reporter) ReportOrder(path string, p graph.Propagation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[path] = p
}

// ReportResult renders result, followed in text form by its ordered impact.
func (r *Reporter) ReportResult(result *tracker.ImpactResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.pending[result.Path]
	delete(r.pending, result.Path)
	if !ok {
		order = graph.Propagation{
			Mode:      graph.ModeStrict,
			Variables: result.Ordered.Variables,
			Functions: result.Ordered.Functions,
		}
	}

	var text bytes.Buffer
	if err := Render(&text, result, FormatText); err != nil {
		r.logger.Warn("failed to render result", "path", result.Path, "error", err)
		return
	}
	_ = RenderOrder(&text, order)

	if r.out != nil {
		var err error
		if r.format == FormatText || r.format == "" {
			_, err = r.out.Write(text.Bytes())
		} else {
			err = Render(r.out, result, r.format)
		}
		if err != nil {
			r.logger.Warn("failed to write result", "path", result.Path, "error", err)
		}
	}

	if r.logPath != "" && result.Classification != state.ClassNone {
		if err := fileutil.AppendFile(r.logPath, append(text.Bytes(), '\n')); err != nil {
			r.logger.Warn("failed to append output log", "path", r.logPath, "error", err)
		}
	}
}

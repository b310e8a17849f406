package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// progressInterval limits redraws; a scan can report thousands of files a
// second.
const progressInterval = 80 * time.Millisecond

type scanProgress struct {
	enabled  bool
	out      io.Writer
	label    string
	total    int
	start    time.Time
	lastDraw time.Time
	spinner  int
	lastLen  int
}

// newScanProgress draws a spinner on stderr when it is a terminal and JSON
// output was not requested. total may be zero when the file count is not
// known up front.
func newScanProgress(label string, total int, asJSON bool) *scanProgress {
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return &scanProgress{
		enabled: tty && !asJSON,
		out:     os.Stderr,
		label:   label,
		total:   total,
		start:   time.Now(),
	}
}

func (p *scanProgress) Update(file string, done int) {
	if !p.enabled {
		return
	}
	now := time.Now()
	if now.Sub(p.lastDraw) < progressInterval && done != p.total {
		return
	}
	p.lastDraw = now

	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[p.spinner%len(frames)]
	p.spinner++

	counter := fmt.Sprintf("%d", done)
	if p.total > 0 {
		counter = fmt.Sprintf("%d/%d", done, p.total)
	}
	p.draw(fmt.Sprintf("%s %s %s %s", frame, p.label, counter, shortenPath(file, 72)))
}

func (p *scanProgress) Done(done int) {
	if !p.enabled {
		return
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	p.draw(fmt.Sprintf("%s: %d files in %s", p.label, done, elapsed))
	fmt.Fprintln(p.out)
}

func (p *scanProgress) draw(status string) {
	padded := status
	if p.lastLen > len(status) {
		padded += strings.Repeat(" ", p.lastLen-len(status))
	}
	p.lastLen = len(status)
	fmt.Fprintf(p.out, "\r%s", padded)
}

func shortenPath(path string, max int) string {
	path = strings.TrimSpace(path)
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-(max-3):]
}

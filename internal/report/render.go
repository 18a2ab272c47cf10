package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/ilstack/internal/config"
)

const (
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

// UseColor decides whether output to f is colourised under mode
func UseColor(mode string, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if f == nil || (!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// Renderer writes tables as aligned text
type Renderer struct {
	Out   io.Writer
	Color bool
}

func (r *Renderer) paint(code, s string) string {
	if !r.Color {
		return s
	}
	return code + s + ansiReset
}

// Render writes one table
func (r *Renderer) Render(t *Table) error {
	var sb strings.Builder

	title := t.Subroutine + " (" + t.Kind
	if t.Method != "" {
		title += " " + t.Method
	}
	title += ")"
	if t.Context != "{}" {
		title += " @" + t.Context
	}
	sb.WriteString(r.paint(ansiBold, "== "+title+" =="))
	sb.WriteByte('\n')
	sb.WriteString(r.paint(ansiBold, fmt.Sprintf("%-12s %4s %6s %6s", "block", "idx", "local", "global")))
	sb.WriteByte('\n')

	calls := make(map[string]bool, len(t.CallsOnThis))
	for _, c := range t.CallsOnThis {
		calls[c] = true
	}

	for _, row := range t.Rows {
		line := fmt.Sprintf("%-12s %4d %6d %6d", row.Block, row.Index, row.Local, row.Global)
		switch {
		case row.Terminal && calls[row.Block]:
			line = r.paint(ansiGreen, line+"  this call")
		case row.Terminal:
			line = r.paint(ansiDim, line)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "max depth %d\n", t.MaxDepth)

	_, err := io.WriteString(r.Out, sb.String())
	return err
}

// RenderAll writes tables separated by blank lines
func (r *Renderer) RenderAll(tables []*Table) error {
	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(r.Out, "\n"); err != nil {
				return err
			}
		}
		if err := r.Render(t); err != nil {
			return err
		}
	}
	return nil
}

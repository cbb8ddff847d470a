// Package output renders command results for terminals, agents and scripts.
//
// Output adapts to the environment: styled text on a terminal, Markdown
// when piped. JSON and CSV are available on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// Mode is an output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeJSON     Mode = "json"
	ModeMarkdown Mode = "markdown"
	ModeCSV      Mode = "csv"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header  lipgloss.Style
	Key     lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(w io.Writer) *Styles {
	lr := lipgloss.NewRenderer(w)
	return &Styles{
		Header:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Key:     lr.NewStyle().Bold(true),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Renderer writes formatted output.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(out),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// Out returns the primary writer.
func (r *Renderer) Out() io.Writer {
	return r.out
}

// Styles returns the text-mode styles.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Println writes a line to the primary writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the primary writer.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header.
func (r *Renderer) Header(level int, title string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, title))
		r.Println("")
		return
	}
	r.Println(r.styles.Header.Render(title))
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Println(r.styles.Key.Render(key+":") + " " + value)
}

// Warning writes a warning line.
func (r *Renderer) Warning(key, message string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Printf("- `%s`: %s\n", key, message)
		return
	}
	r.Println(r.styles.Warning.Render("⚠ "+key) + " " + message)
}

// Success writes a success line.
func (r *Renderer) Success(message string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(message)
		return
	}
	r.Println(r.styles.Success.Render("✓ " + message))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(message string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Printf("_%s_\n", message)
		return
	}
	r.Println(r.styles.Muted.Render(message))
}

// Error writes an error line to the error writer.
func (r *Renderer) Error(err error) {
	_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
}

// Table writes rows in the effective mode: a boxed table for text, a
// Markdown table, or CSV.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	switch r.EffectiveMode() {
	case ModeMarkdown:
		t.RenderMarkdown()
	case ModeCSV:
		t.RenderCSV()
	default:
		t.Render()
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader returns a Markdown header.
func FormatHeader(level int, title string) string {
	return strings.Repeat("#", max(level, 1)) + " " + title
}

// FormatKeyValue returns a Markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

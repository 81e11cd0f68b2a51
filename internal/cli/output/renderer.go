// Package output renders CLI messages and lineage results.
package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/collineage/internal/export"
	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// Renderer writes styled messages and records to a command's streams.
// Styling is applied only when the stream is a terminal.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	format export.Format
	styles *Styles
	errSty *Styles
}

// NewRenderer creates a renderer writing records in format to out and
// diagnostics to errOut.
func NewRenderer(out, errOut io.Writer, format export.Format) *Renderer {
	return &Renderer{
		out:    out,
		errOut: errOut,
		format: format,
		styles: NewStyles(lipgloss.NewRenderer(out)),
		errSty: NewStyles(lipgloss.NewRenderer(errOut)),
	}
}

// Format returns the configured format, possibly FormatAuto.
func (r *Renderer) Format() export.Format { return r.format }

// EffectiveFormat resolves FormatAuto against the output stream.
func (r *Renderer) EffectiveFormat() export.Format {
	return export.Resolve(r.format, r.out)
}

// IsTTY reports whether the output stream is a terminal.
func (r *Renderer) IsTTY() bool { return export.IsTerminal(r.out) }

// Writer returns the output stream.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line to the output stream.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output stream.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a level 1 or level 2 heading. Markdown output gets a
// markdown heading instead of styling.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveFormat() == export.FormatMarkdown {
		prefix := "#"
		if level > 1 {
			prefix = "##"
		}
		r.Printf("%s %s\n\n", prefix, text)
		return
	}
	if level <= 1 {
		r.Println(r.styles.Header1.Render(text))
		return
	}
	r.Println(r.styles.Header2.Render(text))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Muted writes a de-emphasized message.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// Status writes a de-emphasized message to the error stream, leaving the
// output stream to records.
func (r *Renderer) Status(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.errSty.Muted.Render(msg))
}

// Warning writes a warning to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.errSty.Warning.Render("Warning: "+msg))
}

// Error writes an error to the error stream.
func (r *Renderer) Error(err error) {
	_, _ = fmt.Fprintln(r.errOut, r.errSty.Error.Render("Error:")+" "+err.Error())
}

// Records writes records in the effective format.
func (r *Renderer) Records(records []lineage.Record) error {
	return export.Write(r.out, r.format, records)
}

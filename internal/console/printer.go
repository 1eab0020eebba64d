// Package console renders the launcher's human-readable output.
//
// Checklist lines go to stdout with a status marker, the same way the
// operator has always seen them:
//
//	✅ Python version: 3.11.4
//	❌ Error: Model file not found at models/plant_disease_model.pth
//
// Trace output enabled with --verbose goes to stderr with a "[verbose]"
// prefix. In quiet mode (--json) stdout lines are suppressed so that the
// only thing on stdout is the JSON document; verbose lines still go to
// stderr.
//
// A nil *Printer discards everything, which keeps call sites free of nil
// checks in tests.
package console

import (
	"fmt"
	"io"
	"strings"
)

// Status markers printed in front of checklist lines.
const (
	MarkSuccess = "✅"
	MarkFailure = "❌"
	MarkSkipped = "⏭️ "
)

// RuleWidth is the width of the separator line under the banner.
const RuleWidth = 40

// Printer writes checklist and banner lines.
type Printer struct {
	out     io.Writer
	err     io.Writer
	verbose bool
	quiet   bool
}

// New creates a Printer writing normal output to out and trace output
// to errOut.
func New(out, errOut io.Writer, verbose, quiet bool) *Printer {
	return &Printer{out: out, err: errOut, verbose: verbose, quiet: quiet}
}

// Line prints a plain line.
func (p *Printer) Line(format string, args ...any) {
	if p == nil || p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	p.Line("")
}

// Rule prints the "=====" separator.
func (p *Printer) Rule() {
	p.Line("%s", strings.Repeat("=", RuleWidth))
}

// Banner prints a title followed by a separator.
func (p *Printer) Banner(title string) {
	p.Line("%s", title)
	p.Rule()
}

// Success prints a passed checklist line.
func (p *Printer) Success(format string, args ...any) {
	p.Line(MarkSuccess+" "+format, args...)
}

// Failure prints a failed checklist line.
func (p *Printer) Failure(format string, args ...any) {
	p.Line(MarkFailure+" "+format, args...)
}

// Skipped prints a skipped checklist line.
func (p *Printer) Skipped(format string, args ...any) {
	p.Line(MarkSkipped+" "+format, args...)
}

// Verbosef prints a trace line to stderr when verbose output is enabled.
func (p *Printer) Verbosef(format string, args ...any) {
	if p == nil || !p.verbose {
		return
	}
	fmt.Fprintf(p.err, "[verbose] "+format+"\n", args...)
}

// Stdout returns the writer subprocess output should be streamed to.
// In quiet mode subprocess stdout is redirected to stderr so that stdout
// stays machine-readable.
func (p *Printer) Stdout() io.Writer {
	if p == nil {
		return io.Discard
	}
	if p.quiet {
		return p.err
	}
	return p.out
}

// Stderr returns the writer subprocess error output should be streamed to.
func (p *Printer) Stderr() io.Writer {
	if p == nil {
		return io.Discard
	}
	return p.err
}

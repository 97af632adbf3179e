// Package ui renders the engine's decisions. The engine is a single
// writer thread, so the reporter is synchronous: each mutating decision
// is printed before the operation runs, and a dry run produces the
// exact same lines with no filesystem changes.
package ui

import (
	"fmt"
	"io"
)

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	Writer    io.Writer // decision lines (stdout)
	ErrWriter io.Writer // snapshot-level notices (stderr)
	Verbose   bool
	Quiet     bool
}

// Reporter prints decision lines in verbose mode and run notices unless
// quiet. Decision formats follow the classic notation: mkdir, cp, ln -s
// and ln with operands in angle brackets.
type Reporter struct {
	w       io.Writer
	errW    io.Writer
	verbose bool
	quiet   bool
}

// NewReporter creates a Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	return &Reporter{
		w:       cfg.Writer,
		errW:    cfg.ErrWriter,
		verbose: cfg.Verbose,
		quiet:   cfg.Quiet,
	}
}

// Mkdir reports a directory about to be created.
func (r *Reporter) Mkdir(dst string) {
	r.opf("mkdir <%s>", dst)
}

// Copy reports a file about to be copied.
func (r *Reporter) Copy(src, dst string) {
	r.opf("cp <%s> <%s>", src, dst)
}

// Symlink reports a symbolic link about to be created.
func (r *Reporter) Symlink(target, dst string) {
	r.opf("ln -s <%s> <%s>", target, dst)
}

// Hardlink reports a hard link about to be created at dst pointing to
// the previous snapshot's destination entry.
func (r *Reporter) Hardlink(dst, target string) {
	r.opf("ln <%s> <%s>", dst, target)
}

// Noticef prints a run-level notice (snapshot started, skipped, ...)
// unless quiet.
func (r *Reporter) Noticef(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.errW, format+"\n", args...)
}

func (r *Reporter) opf(format string, args ...any) {
	if !r.verbose {
		return
	}
	fmt.Fprintf(r.w, format+"\n", args...)
}

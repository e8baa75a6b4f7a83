// Package safety gates destructive commands behind the global --dry-run,
// --yes and --force flags and an interactive prompt.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Options carries the global safety flags shared by destructive commands.
type Options struct {
	DryRun bool
	Yes    bool
	// Force implies Yes.
	Force bool
}

// Proceed reports whether the action may run without asking.
func (o Options) Proceed() bool {
	return !o.DryRun && (o.Yes || o.Force)
}

// Confirm asks question on out and reads one answer line from in. Dry runs
// always decline and pre-approved runs never prompt. Only "y" and "yes"
// (any case) approve; end of input declines.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	switch {
	case opts.DryRun:
		return false, nil
	case opts.Proceed():
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	if in == nil {
		return false, nil
	}
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		return false, errors.Wrap(sc.Err(), "read answer")
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Package toolrun runs the external programs sitesnap depends on (pg_dump,
// psql, mysqldump, tar, ...) as child processes with explicit argument vectors.
package toolrun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrToolFailed is the kind of every failure reported by a Runner: the tool
// could not be started or exited with a non-zero status.
var ErrToolFailed = errors.New("external tool failed")

// maxStderr bounds how much of a failing tool's stderr is kept in the error.
const maxStderr = 4096

// Command describes a single child process invocation.
type Command struct {
	// Path is the program to run; bare names are resolved against PATH.
	Path string
	Args []string
	// Env holds variables added to the child's environment only. The parent
	// process environment is never modified.
	Env    map[string]string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
}

// String renders the command for logs. Environment values are never included.
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Runner executes commands. Exec is the real implementation, Fake records calls
// for tests.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// Exec runs commands with os/exec.
type Exec struct{}

func (Exec) Run(ctx context.Context, c Command) error {
	if c.Path == "" {
		return errors.Wrap(ErrToolFailed, "empty command path")
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	} else {
		cmd.Stdout = io.Discard
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ErrToolFailed, "%s: %v", c.Path, ctx.Err())
		}
		msg := strings.TrimSpace(tail(stderr.String(), maxStderr))
		if msg != "" {
			return errors.Wrapf(ErrToolFailed, "%s: %v: %s", c.Path, err, msg)
		}
		return errors.Wrapf(ErrToolFailed, "%s: %v", c.Path, err)
	}
	return nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, override := extra[name]; override {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return out
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var _ Runner = Exec{}

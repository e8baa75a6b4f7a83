package toolrun

import (
	"context"
	"io"
	"sync"
)

// Fake is an in-memory Runner for unit tests. It records every command and
// delegates to Handler when set; otherwise each call succeeds without output.
type Fake struct {
	mu      sync.Mutex
	Calls   []Command
	Handler func(cmd Command) error
}

func (f *Fake) Run(ctx context.Context, cmd Command) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	h := f.Handler
	f.mu.Unlock()
	if h != nil {
		return h(cmd)
	}
	if cmd.Stdin != nil {
		_, _ = io.Copy(io.Discard, cmd.Stdin)
	}
	return nil
}

// Last returns the most recent command, or the zero Command when none ran.
func (f *Fake) Last() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return Command{}
	}
	return f.Calls[len(f.Calls)-1]
}

var _ Runner = (*Fake)(nil)

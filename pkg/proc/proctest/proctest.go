// Package proctest provides a recording [proc.Runner] for tests.
package proctest

import (
	"context"
	"sync"

	"github.com/matzehuels/monopub/pkg/errors"
	"github.com/matzehuels/monopub/pkg/proc"
)

// Recorder records every command instead of running it.
type Recorder struct {
	// Outputs maps a command line (Cmd.String) to what Output returns.
	Outputs map[string]string

	// Fail, when set, decides whether a command fails. A nil return
	// means success.
	Fail func(proc.Cmd) error

	// Hook, when set, runs before the result is returned, e.g. to
	// inspect files the command would see.
	Hook func(proc.Cmd)

	mu    sync.Mutex
	calls []proc.Cmd
}

// Run implements [proc.Runner].
func (r *Recorder) Run(_ context.Context, c proc.Cmd) error {
	return r.record(c)
}

// Output implements [proc.Runner].
func (r *Recorder) Output(_ context.Context, c proc.Cmd) (string, error) {
	if err := r.record(c); err != nil {
		return "", err
	}
	out, ok := r.Outputs[c.String()]
	if !ok {
		return "", errors.New(errors.ErrCodeCommandFailed, "%s: no output recorded", c.String())
	}
	return out, nil
}

// Calls returns the recorded commands in order.
func (r *Recorder) Calls() []proc.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proc.Cmd(nil), r.calls...)
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

func (r *Recorder) record(c proc.Cmd) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	if r.Hook != nil {
		r.Hook(c)
	}
	if r.Fail != nil {
		return r.Fail(c)
	}
	return nil
}

var _ proc.Runner = (*Recorder)(nil)

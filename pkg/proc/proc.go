// Package proc runs external commands such as npm and git.
//
// Commands inherit the terminal's stdio so npm's own output and prompts
// (one-time passwords, for example) reach the user unchanged. A non-zero
// exit is reported as a COMMAND_FAILED error.
package proc

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
)

// Cmd describes one command invocation.
type Cmd struct {
	Dir  string   // Working directory
	Name string   // Executable, looked up in PATH
	Args []string // Arguments
	Env  []string // Extra "KEY=value" entries appended to the process env
}

// String renders the command line for logs.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd with inherited stdio and waits for it.
	Run(ctx context.Context, cmd Cmd) error

	// Output executes cmd and returns its trimmed standard output.
	Output(ctx context.Context, cmd Cmd) (string, error)
}

// Exec runs commands with os/exec.
type Exec struct {
	Logger *log.Logger
	Stdout io.Writer // Defaults to os.Stdout
	Stderr io.Writer // Defaults to os.Stderr
}

// NewExec returns an Exec that logs to logger.
func NewExec(logger *log.Logger) *Exec {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Exec{Logger: logger, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run implements [Runner].
func (e *Exec) Run(ctx context.Context, c Cmd) error {
	cmd := e.command(ctx, c)
	cmd.Stdin = os.Stdin
	cmd.Stdout = e.stdout()
	cmd.Stderr = e.stderr()
	return e.wrap(c, cmd.Run())
}

// Output implements [Runner].
func (e *Exec) Output(ctx context.Context, c Cmd) (string, error) {
	var buf bytes.Buffer
	cmd := e.command(ctx, c)
	cmd.Stdout = &buf
	cmd.Stderr = e.stderr()
	if err := e.wrap(c, cmd.Run()); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (e *Exec) command(ctx context.Context, c Cmd) *exec.Cmd {
	if e.Logger != nil {
		e.Logger.Debug("exec", "cmd", c.String(), "dir", c.Dir)
	}
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

func (e *Exec) wrap(c Cmd, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.Wrap(errors.ErrCodeCommandFailed, err, "%s exited with code %d", c.String(), exitErr.ExitCode())
	}
	return errors.Wrap(errors.ErrCodeCommandFailed, err, "%s", c.String())
}

func (e *Exec) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Exec) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

var _ Runner = (*Exec)(nil)

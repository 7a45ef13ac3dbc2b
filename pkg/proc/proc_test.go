package proc

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/monopub/pkg/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCmdString(t *testing.T) {
	tests := []struct {
		cmd  Cmd
		want string
	}{
		{Cmd{Name: "npm", Args: []string{"run", "prepare"}}, "npm run prepare"},
		{Cmd{Name: "git"}, "git"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestExecRun(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	var out bytes.Buffer
	e := NewExec(nil)
	e.Stdout = &out

	err := e.Run(context.Background(), Cmd{
		Dir:  dir,
		Name: "sh",
		Args: []string{"-c", "pwd; echo $MONOPUB_TEST"},
		Env:  []string{"MONOPUB_TEST=hello"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	if got := out.String(); got != resolved+"\nhello\n" && got != dir+"\nhello\n" {
		t.Errorf("output = %q", got)
	}
}

func TestExecRunFailure(t *testing.T) {
	requireShell(t)
	e := NewExec(nil)
	e.Stderr = &bytes.Buffer{}

	err := e.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "exit 3"}})
	if !errors.Is(err, errors.ErrCodeCommandFailed) {
		t.Fatalf("Run() = %v, want %s", err, errors.ErrCodeCommandFailed)
	}
	if want := "sh -c exit 3 exited with code 3"; !strings.HasPrefix(errors.UserMessage(err), want) {
		t.Errorf("message = %q", errors.UserMessage(err))
	}

	err = e.Run(context.Background(), Cmd{Name: "monopub-no-such-binary"})
	if !errors.Is(err, errors.ErrCodeCommandFailed) {
		t.Errorf("missing binary: %v", err)
	}
}

func TestExecOutput(t *testing.T) {
	requireShell(t)
	e := NewExec(nil)
	got, err := e.Output(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo '  abc123  '"}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc123" {
		t.Errorf("Output() = %q", got)
	}
}

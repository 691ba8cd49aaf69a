package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner abstracts external command invocation so host inspection and
// mutation can be tested without touching the live system. The unit of work
// is a single command invocation; it either completes or the caller handles
// the error.
type CommandRunner interface {
	// Run executes a command and returns its trimmed stdout.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// LookPath reports the full path of a binary, or an error if it is not
	// installed.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the local host via os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner for the local host.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and returns its trimmed stdout. Stderr is folded
// into the returned error on failure so operators see the tool's own message.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// LookPath reports whether the binary is on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs an external command and returns its stdout.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

type execExecutor struct{}

// NewExecutor returns an Executor backed by os/exec.
func NewExecutor() Executor {
	return execExecutor{}
}

func (execExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return "", &CommandError{Name: name, Stderr: s, Err: err}
		}
		return "", &CommandError{Name: name, Err: err}
	}
	return stdout.String(), nil
}

// CommandError carries the stderr of a failed command.
type CommandError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command '%s' failed: %v\nstderr: %s", e.Name, e.Err, e.Stderr)
	}
	return fmt.Sprintf("command '%s' failed: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

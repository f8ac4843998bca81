package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner runs a command to completion and reports its exit status.
// The error is reserved for commands that could not be started at all.
type Runner interface {
	Run(ctx context.Context, argv []string) (int, error)
}

// ExecRunner runs commands as child processes with the console attached.
type ExecRunner struct {
	// Stdin is connected to the child's standard input.
	Stdin io.Reader
	// Stdout receives the child's standard output.
	Stdout io.Writer
	// Stderr receives the child's standard error.
	Stderr io.Writer
	// Dir is the working directory of the child; empty means the current one.
	Dir string
}

// errEmptyCommand is returned when argv has no program name.
var errEmptyCommand = errors.New("empty command")

// NewExecRunner returns a runner wired to the process's own standard streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run starts argv[0] with the remaining arguments and waits for it.
// A non-zero exit is reported through the status, not the error.
func (r *ExecRunner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 || argv[0] == "" {
		return -1, errEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Dir = r.Dir

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("run %s: %w", argv[0], err)
}

// Describe renders argv for log messages.
func Describe(argv []string) string {
	quoted := make([]string, 0, len(argv))

	for _, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}

		quoted = append(quoted, arg)
	}

	return strings.Join(quoted, " ")
}

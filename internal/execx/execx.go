// Package execx runs external programs for the bootstrapper.
//
// Everything that shells out (package managers, the aws CLI) goes through
// Runner so tests can record invocations instead of executing them.
package execx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/c-dragonai/stockllm/pkg/logger"
)

// Runner executes commands and resolves binaries on the search path.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	LookPath(name string) (string, error)
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit status carried by err, if any.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string

	// Secrets are masked whenever a command line is logged.
	Secrets []string
}

// NewExecRunner returns a Runner that streams child output to the terminal.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run starts name with args and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	logger.Log.Debug().Str("cmd", Redact(Describe(name, args...), r.Secrets...)).Msg("running command")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: name, Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}

// AddSecrets registers values to mask in logged command lines.
func (r *ExecRunner) AddSecrets(secrets ...string) {
	r.Secrets = append(r.Secrets, secrets...)
}

// LookPath resolves name on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Describe renders a command line for logs.
func Describe(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// Redact replaces every occurrence of the given secrets in s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "****")
	}
	return s
}

var _ Runner = (*ExecRunner)(nil)

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ExecResult is the outcome of one command execution.
type ExecResult struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// forbiddenShellMeta matches shell metacharacters that would let a generated
// command escape into arbitrary execution. Generated commands are single
// AWS CLI invocations; anything beyond that is rejected before exec.
var forbiddenShellMeta = regexp.MustCompile("[;&|`$><]")

// placeholderPattern matches unfilled <resource-name> style placeholders the
// model emits when the intent lacked a concrete id.
var placeholderPattern = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9_-]*>`)

// Executor runs validated AWS CLI commands with a timeout.
type Executor struct {
	timeout time.Duration
	dryRun  bool
}

// NewExecutor builds an executor. A zero timeout defaults to one minute.
func NewExecutor(timeout time.Duration, dryRun bool) *Executor {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Executor{timeout: timeout, dryRun: dryRun}
}

// ValidateCommand checks that a generated command is a single plain AWS CLI
// invocation with no placeholders left in it.
func ValidateCommand(command string) error {
	command = strings.TrimSpace(command)
	if !strings.HasPrefix(command, "aws ") {
		return fmt.Errorf("command must start with 'aws': %s", command)
	}
	if loc := forbiddenShellMeta.FindString(command); loc != "" {
		return fmt.Errorf("command contains forbidden shell metacharacter %q", loc)
	}
	if ph := placeholderPattern.FindString(command); ph != "" {
		return fmt.Errorf("command contains unresolved placeholder %s; specify the resource explicitly", ph)
	}
	return nil
}

// Run validates and executes the command, capturing output. Validation
// failures and timeouts come back as errors; a non-zero exit from the CLI
// itself is reported through ExitCode, not an error.
func (e *Executor) Run(ctx context.Context, command string) (*ExecResult, error) {
	command = strings.TrimSpace(command)
	if err := ValidateCommand(command); err != nil {
		return nil, err
	}

	if e.dryRun {
		slog.Info("dry run, skipping execution", "command", command)
		return &ExecResult{Command: command, DryRun: true}, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	fields := strings.Fields(command)
	cmd := exec.CommandContext(timeoutCtx, fields[0], fields[1:]...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("executing command", "command", command)
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command timed out after %s", e.timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("command failed to start: %w", err)
		}
	}

	return &ExecResult{
		Command:  command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}

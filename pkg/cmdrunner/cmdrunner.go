// Package cmdrunner invokes the external OpenClaw CLI and captures its output.
package cmdrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mattn/go-shellwords"
	log "github.com/sirupsen/logrus"
)

const timedOutStderr = "Command timed out"

// Result holds the captured output of a single tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs the external tool with the given arguments. Implementations
// must fold every failure mode into the Result: handlers never see an error,
// they see an exit code and captured text.
type Runner interface {
	Run(ctx context.Context, args ...string) Result
}

// ExecRunner spawns a fresh process per invocation. No pooling, no caching.
type ExecRunner struct {
	path     string
	baseArgs []string
	timeout  time.Duration
}

var _ Runner = (*ExecRunner)(nil)

// New builds an ExecRunner from the configured tool command. The command is
// parsed with shellwords so it may carry leading arguments of its own
// (e.g. "npx openclaw"); those are prepended to every per-call argument list.
func New(command string, timeout time.Duration) (*ExecRunner, error) {
	parser := shellwords.NewParser()
	parts, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool command %q: %w", command, err)
	}
	if len(parts) == 0 {
		return nil, errors.New("tool command is empty")
	}

	return &ExecRunner{
		path:     parts[0],
		baseArgs: parts[1:],
		timeout:  timeout,
	}, nil
}

// Run executes the tool and captures stdout, stderr and the exit code.
// A timeout yields exit code 1 with stderr "Command timed out" and any
// partial output discarded; a spawn failure yields exit code 1 with the
// error text as stderr.
func (r *ExecRunner) Run(ctx context.Context, args ...string) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	full := append(append([]string{}, r.baseArgs...), args...)
	cmd := exec.CommandContext(ctx, r.path, full...)
	// ANSI escapes in the tool's output would corrupt JSON parsing downstream.
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	// A grandchild holding the output pipes must not stall the request past
	// the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{
		"tool": r.path,
		"args": full,
	}).Debug("running command")

	start := time.Now()
	err := cmd.Run()

	if err == nil {
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.WithFields(log.Fields{
			"tool":    r.path,
			"args":    full,
			"elapsed": time.Since(start).String(),
		}).Warn("command timed out")
		return Result{Stderr: timedOutStderr, ExitCode: 1}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitErr.ExitCode(),
		}
	}

	if errors.Is(err, exec.ErrWaitDelay) {
		// The tool exited but something it spawned kept the pipes open;
		// its own output and exit code are still good.
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: cmd.ProcessState.ExitCode(),
		}
	}

	log.WithFields(log.Fields{
		"tool": r.path,
		"args": full,
	}).WithError(err).Error("command failed to start")
	return Result{Stderr: err.Error(), ExitCode: 1}
}

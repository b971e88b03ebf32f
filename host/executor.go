package host

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner runs one external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
	// RunQuiet is Run for commands whose non-zero exit is an answer, not a failure.
	RunQuiet(ctx context.Context, name string, args ...string) (*Result, error)
	// RunEnv is Run with env appended to the inherited environment.
	RunEnv(ctx context.Context, env []string, name string, args ...string) (*Result, error)
}

// waitDelay bounds how long Run waits for output pipes after the process
// group has been killed.
const waitDelay = 2 * time.Second

// Executor runs commands on the local host. A zero timeout never kills the
// child: the call blocks until it exits. On timeout the whole process group
// is killed, so grandchildren holding the output pipes do not keep Run blocked.
type Executor struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewExecutor(timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		timeout: timeout,
		logger:  logger,
	}
}

func (e *Executor) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	return e.run(ctx, true, nil, name, args...)
}

func (e *Executor) RunQuiet(ctx context.Context, name string, args ...string) (*Result, error) {
	return e.run(ctx, false, nil, name, args...)
}

func (e *Executor) RunEnv(ctx context.Context, env []string, name string, args ...string) (*Result, error) {
	return e.run(ctx, true, env, name, args...)
}

func (e *Executor) run(ctx context.Context, logErrors bool, env []string, name string, args ...string) (*Result, error) {
	start := time.Now()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("Executing command",
		"command", name,
		"args", args,
	)

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if e.timeout > 0 && ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("command %s timed out after %v", name, e.timeout)
	}

	if err != nil {
		level := slog.LevelError
		if !logErrors {
			level = slog.LevelDebug
		}
		e.logger.Log(ctx, level, "Command failed",
			"command", name,
			"args", args,
			"exitCode", result.ExitCode,
			"stderr", result.Stderr,
			"duration", result.Duration,
		)
		return result, fmt.Errorf("command %s failed with exit code %d: %w", name, result.ExitCode, err)
	}

	e.logger.Debug("Command completed",
		"command", name,
		"exitCode", result.ExitCode,
		"duration", result.Duration,
	)

	return result, nil
}

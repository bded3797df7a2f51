package command

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultGracePeriod = 2 * time.Second
)

// Runner executes external processes. Implementations must honor ctx and
// never block past their configured timeout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) (string, error)
	// Start launches a process without waiting for it to exit.
	Start(ctx context.Context, name string, args ...string) error
}

// OSRunner runs real processes with os/exec. A process that outlives Timeout
// is interrupted, then killed after GracePeriod.
type OSRunner struct {
	Timeout     time.Duration
	GracePeriod time.Duration
	logger      *zap.Logger
}

func NewOSRunner(timeout time.Duration, logger *zap.Logger) *OSRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSRunner{
		Timeout:     timeout,
		GracePeriod: DefaultGracePeriod,
		logger:      logger,
	}
}

func (r *OSRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.exec(ctx, name, args)
	return err
}

func (r *OSRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	stdout, err := r.exec(ctx, name, args)
	if err != nil {
		return "", err
	}
	return stdout, nil
}

// Start launches name and returns once the process is running. The process
// is not bound to Timeout or ctx; it is reaped in the background.
func (r *OSRunner) Start(ctx context.Context, name string, args ...string) error {
	if name == "" {
		return os.ErrInvalid
	}
	if err := ctx.Err(); err != nil {
		return &CommandError{Cmd: name, Stage: StageCanceled, ExitCode: -1, Cause: err}
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return &CommandError{Cmd: name, Stage: StageStart, ExitCode: -1, Cause: err}
	}

	start := time.Now()
	go func() {
		err := cmd.Wait()
		r.logger.Debug("launched command exited",
			zap.String("cmd", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}()
	return nil
}

func (r *OSRunner) exec(ctx context.Context, name string, args []string) (string, error) {
	if name == "" {
		return "", os.ErrInvalid
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.WaitDelay = r.GracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", &CommandError{Cmd: name, Stage: StageStart, ExitCode: -1, Cause: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(r.Timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		r.logger.Debug("command finished",
			zap.String("cmd", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if err != nil {
			return "", &CommandError{
				Cmd:      name,
				Stage:    StageWait,
				ExitCode: exitCode(err),
				Stderr:   strings.TrimSpace(stderr.String()),
				Cause:    err,
			}
		}
		return stdout.String(), nil

	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return "", &CommandError{Cmd: name, Stage: StageCanceled, ExitCode: -1, Cause: ctx.Err()}

	case <-timer.C:
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(r.GracePeriod):
			_ = cmd.Process.Kill()
			<-done
		}
		r.logger.Warn("command timed out",
			zap.String("cmd", name),
			zap.Duration("timeout", r.Timeout))
		return "", &CommandError{Cmd: name, Stage: StageTimeout, ExitCode: -1, Cause: ErrTimeout}
	}
}

func exitCode(err error) int {
	type exitCoder interface {
		ExitCode() int
	}
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}

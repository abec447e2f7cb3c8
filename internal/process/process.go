// Package process supervises external child processes: spawn, non-blocking
// liveness polling, and best-effort graceful-then-forced termination.
package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// LogParser extracts the log level and message from a line of child output.
type LogParser func(line string) (level, msg string)

// Status of a supervised child process.
type Status int

const (
	// StatusRunning means the child has not exited yet.
	StatusRunning Status = iota
	// StatusExited means the child has exited and its code is known.
	StatusExited
)

// State is the result of a liveness check.
type State struct {
	Status   Status
	ExitCode int
}

// Handle supervises one spawned child. A handle is owned by the goroutine
// that spawned it; once the child exits the handle is never reused.
type Handle struct {
	name      string
	cmd       *exec.Cmd
	logger    *slog.Logger
	outLogger *slog.Logger
	parser    LogParser

	// exitCode is written by the wait goroutine before done is closed, so
	// reads after observing done are safe without a lock.
	done     chan struct{}
	exitCode int
}

// Option configures a Handle before the child is started.
type Option func(*Handle)

// WithOutputLogger relays child stdout/stderr through logger, line by line,
// using parser to recover per-line log levels. A nil parser logs everything
// at info.
func WithOutputLogger(logger *slog.Logger, parser LogParser) Option {
	return func(h *Handle) {
		h.outLogger = logger
		h.parser = parser
	}
}

// Spawn starts argv[0] with the remaining arguments and begins supervising
// it. The child gets its own process group so signals aimed at it do not
// leak to the parent's group. Returns an error if the executable cannot be
// started; nothing is left running in that case.
func Spawn(name string, argv []string, logger *slog.Logger, opts ...Option) (*Handle, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	h := &Handle{
		name:   name,
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.cmd = exec.Command(argv[0], argv[1:]...)
	h.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := h.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := h.cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := h.cmd.Start(); err != nil {
		logger.Error("Failed to start process", "name", name, "error", err)
		return nil, err
	}

	logger.Info("Process started", "name", name, "pid", h.cmd.Process.Pid)

	outputDone := make(chan struct{}, 2)
	go func() {
		h.streamOutput(stdout, "stdout")
		outputDone <- struct{}{}
	}()
	go func() {
		h.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	go func() {
		// Both pipes hit EOF when the child exits; drain them before
		// Wait so it cannot close the pipes under the readers.
		<-outputDone
		<-outputDone
		h.exitCode = exitCodeFromError(h.cmd.Wait())
		close(h.done)
	}()

	return h, nil
}

// PID returns the child's process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Name returns the role name the handle was spawned with.
func (h *Handle) Name() string {
	return h.name
}

// Done returns a channel closed when the child has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Poll reports whether the child is still running without blocking.
func (h *Handle) Poll() State {
	select {
	case <-h.done:
		return State{Status: StatusExited, ExitCode: h.exitCode}
	default:
		return State{Status: StatusRunning}
	}
}

// Terminate asks the child to shut down with SIGTERM. Calling it on an
// already-exited handle is a no-op. Failures are logged and dropped:
// termination is best-effort cleanup and the caller must proceed regardless.
func (h *Handle) Terminate() {
	if h.Poll().Status == StatusExited {
		return
	}
	h.logger.Info("Sending SIGTERM to process", "name", h.name, "pid", h.cmd.Process.Pid)
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Warn("Failed to send SIGTERM", "name", h.name, "error", err)
	}
}

// Kill forces the child to exit with SIGKILL. Same no-op and swallowed-error
// contract as Terminate.
func (h *Handle) Kill() {
	if h.Poll().Status == StatusExited {
		return
	}
	h.logger.Warn("Force killing process", "name", h.name, "pid", h.cmd.Process.Pid)
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Warn("Failed to kill process", "name", h.name, "error", err)
	}
}

// streamOutput relays one output stream of the child into the configured
// logger, re-leveled by the parser.
func (h *Handle) streamOutput(reader io.Reader, source string) {
	logger := h.outLogger
	if logger == nil {
		logger = h.logger
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		level, msg := "info", line
		if h.parser != nil {
			level, msg = h.parser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		h.logger.Warn("Error reading process output", "name", h.name, "source", source, "error", err)
	}
}

// exitCodeFromError recovers the child's exit code from the error returned
// by Wait: 0 for nil, the real code for ExitError, 1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

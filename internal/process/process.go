package process

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	defaultWaitDelay   = 2 * time.Second
	defaultKillTimeout = 5 * time.Second
	// ExitCodeKilled is reported for a process ended by SIGKILL.
	ExitCodeKilled = 128 + int(syscall.SIGKILL)
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Options configures a spawned process.
type Options struct {
	// Logger receives lifecycle messages. Defaults to slog.Default().
	Logger *slog.Logger
	// OutputLogger receives the child's stdout/stderr lines. Defaults to Logger.
	OutputLogger *slog.Logger
	// LogParser extracts a level from each output line. Nil logs every line at info.
	LogParser LogParser
	// OutputHandler additionally receives every raw output line.
	OutputHandler OutputHandler
	// Env is appended to the supervisor's own environment.
	Env []string
	// Dir is the working directory. Empty means the supervisor's.
	Dir string
	// KillTimeout bounds the wait after SIGKILL in Stop.
	KillTimeout time.Duration
}

// Process is one spawned OS process.
type Process struct {
	name   string
	cmd    *exec.Cmd
	logger *slog.Logger

	killTimeout time.Duration

	done     chan struct{}
	mu       sync.RWMutex
	exitCode int
}

// Start parses command, starts it in a new process group and returns
// immediately. The returned Process is tracked until it exits.
func Start(name, command string, opts Options) (*Process, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("domain", name)

	args, err := ParseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = defaultWaitDelay

	outLogger := opts.OutputLogger
	if outLogger == nil {
		outLogger = logger
	} else {
		outLogger = outLogger.With("domain", name)
	}
	stdout := newLineWriter("stdout", outLogger, opts.LogParser, opts.OutputHandler)
	stderr := newLineWriter("stderr", outLogger, opts.LogParser, opts.OutputHandler)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", args[0], err)
	}

	killTimeout := opts.KillTimeout
	if killTimeout <= 0 {
		killTimeout = defaultKillTimeout
	}

	p := &Process{
		name:        name,
		cmd:         cmd,
		logger:      logger,
		killTimeout: killTimeout,
		done:        make(chan struct{}),
		exitCode:    -1,
	}
	logger.Info("Process started", "pid", cmd.Process.Pid, "command", command)

	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()

		code := exitCodeFromError(cmd, err)
		p.mu.Lock()
		p.exitCode = code
		p.mu.Unlock()
		close(p.done)

		if code != 0 {
			logger.Warn("Process exited", "pid", cmd.Process.Pid, "exit_code", code, "error", err)
		} else {
			logger.Info("Process exited", "pid", cmd.Process.Pid, "exit_code", code)
		}
	}()

	return p, nil
}

// Name returns the domain name the process was started for.
func (p *Process) Name() string { return p.name }

// Pid returns the OS process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the exit status is known.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has exited, without blocking.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit status, or -1 while the process is running.
// A process ended by a signal reports 128+signal.
func (p *Process) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Terminate sends SIGTERM to the process group.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process group.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Signal delivers sig to the whole process group. Signalling a process that
// has already exited is not an error.
func (p *Process) Signal(sig syscall.Signal) error {
	if p.Exited() {
		return nil
	}
	err := syscall.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("signal %s to pid %d: %w", sig, p.cmd.Process.Pid, err)
	}
	return nil
}

// Wait blocks until the process exits or timeout elapses and reports whether it exited.
func (p *Process) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Stop asks the process to terminate, waits up to grace and kills it if it
// is still alive. Returns the exit code.
func (p *Process) Stop(grace time.Duration) int {
	if p.Exited() {
		return p.ExitCode()
	}

	p.logger.Info("Sending SIGTERM to process", "pid", p.Pid())
	if err := p.Terminate(); err != nil {
		p.logger.Warn("Failed to send SIGTERM", "error", err)
	}
	if p.Wait(grace) {
		return p.ExitCode()
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", grace)
	if err := p.Kill(); err != nil {
		p.logger.Error("Failed to kill process", "error", err)
	}
	if !p.Wait(p.killTimeout) {
		p.logger.Error("Process did not exit after kill signal")
		return ExitCodeKilled
	}
	return p.ExitCode()
}

// exitCodeFromError extracts the exit code after cmd.Wait.
func exitCodeFromError(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	// output still held open by a grandchild; the process itself has exited
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return 1
}

// lineWriter splits child output into lines and logs each one.
type lineWriter struct {
	source  string
	logger  *slog.Logger
	parser  LogParser
	handler OutputHandler
	mu      sync.Mutex
	buf     bytes.Buffer
}

func newLineWriter(source string, logger *slog.Logger, parser LogParser, handler OutputHandler) *lineWriter {
	return &lineWriter{source: source, logger: logger, parser: parser, handler: handler}
}

// Write implements io.Writer.
func (w *lineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(b)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(idx+1), "\r\n"))
		w.emit(line)
	}
	return len(b), nil
}

// Flush emits a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	if line == "" {
		return
	}
	if w.handler != nil {
		w.handler.HandleLine(w.source, line)
	}

	level, msg := "info", line
	if w.parser != nil {
		level, msg = w.parser(line)
	}

	switch level {
	case "fatal", "critical", "error":
		w.logger.Error(msg, "source", w.source)
	case "warn", "warning":
		w.logger.Warn(msg, "source", w.source)
	case "debug", "trace":
		w.logger.Debug(msg, "source", w.source)
	default:
		w.logger.Info(msg, "source", w.source)
	}
}

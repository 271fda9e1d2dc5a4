package process

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTest(t *testing.T, command string) *Process {
	t.Helper()
	p, err := Start("test", command, Options{Logger: testLogger(), KillTimeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start(%q) failed: %v", command, err)
	}
	t.Cleanup(func() {
		_ = p.Kill()
		p.Wait(time.Second)
	})
	return p
}

func waitDone(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	if !p.Wait(timeout) {
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestProcessExitCode(t *testing.T) {
	p := startTest(t, "sh -c 'exit 42'")
	waitDone(t, p, 2*time.Second)

	if code := p.ExitCode(); code != 42 {
		t.Errorf("expected exit code 42, got %d", code)
	}
}

func TestProcessCleanExit(t *testing.T) {
	p := startTest(t, "true")
	waitDone(t, p, 2*time.Second)

	if code := p.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if !p.Exited() {
		t.Error("Exited() should be true after Done")
	}
}

func TestProcessRunningExitCode(t *testing.T) {
	p := startTest(t, "sleep 10")

	if p.Exited() {
		t.Fatal("process should still be running")
	}
	if code := p.ExitCode(); code != -1 {
		t.Errorf("expected -1 while running, got %d", code)
	}
	if p.Pid() <= 0 {
		t.Errorf("expected positive pid, got %d", p.Pid())
	}
}

func TestGracefulStop(t *testing.T) {
	p := startTest(t, `sh -c "trap 'exit 0' TERM; while :; do sleep 0.1; done"`)
	time.Sleep(100 * time.Millisecond)

	if code := p.Stop(2 * time.Second); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := startTest(t, `sh -c "trap '' TERM; while :; do sleep 0.1; done"`)
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	code := p.Stop(100 * time.Millisecond)
	if code != ExitCodeKilled {
		t.Errorf("expected exit code %d, got %d", ExitCodeKilled, code)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("stop took too long: %v", elapsed)
	}
}

func TestTerminateReachesProcessGroup(t *testing.T) {
	// the shell forks sleep; SIGTERM to the group must end both
	p := startTest(t, `sh -c "sleep 30 & wait"`)
	time.Sleep(100 * time.Millisecond)

	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	waitDone(t, p, 3*time.Second)
}

func TestSignalAfterExit(t *testing.T) {
	p := startTest(t, "true")
	waitDone(t, p, 2*time.Second)

	if err := p.Terminate(); err != nil {
		t.Errorf("Terminate after exit should be a no-op, got %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Errorf("Kill after exit should be a no-op, got %v", err)
	}
	if code := p.Stop(time.Second); code != 0 {
		t.Errorf("Stop after exit should report the exit code, got %d", code)
	}
}

func TestStartNonExistentCommand(t *testing.T) {
	_, err := Start("test", "/nonexistent/command/that/does/not/exist", Options{Logger: testLogger()})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
	if !errors.Is(err, exec.ErrNotFound) && !strings.Contains(err.Error(), "no such file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStartInvalidCommand(t *testing.T) {
	if _, err := Start("test", `echo "unclosed`, Options{Logger: testLogger()}); !errors.Is(err, ErrUnclosedQuote) {
		t.Errorf("expected ErrUnclosedQuote, got %v", err)
	}
	if _, err := Start("test", "   ", Options{Logger: testLogger()}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

type recordingHandler struct {
	mu    sync.Mutex
	lines map[string][]string
}

func (h *recordingHandler) HandleLine(source, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lines == nil {
		h.lines = make(map[string][]string)
	}
	h.lines[source] = append(h.lines[source], line)
}

func TestOutputHandler(t *testing.T) {
	handler := &recordingHandler{}
	p, err := Start("test", `sh -c "echo line1; echo line2; printf partial; echo oops >&2"`, Options{
		Logger:        testLogger(),
		OutputHandler: handler,
		Env:           []string{"HOLUS_DOMAIN=test"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	handler.mu.Lock()
	defer handler.mu.Unlock()

	if got := strings.Join(handler.lines["stdout"], ","); got != "line1,line2,partial" {
		t.Errorf("stdout lines = %q, want line1,line2,partial", got)
	}
	if got := strings.Join(handler.lines["stderr"], ","); got != "oops" {
		t.Errorf("stderr lines = %q, want oops", got)
	}
}

func TestEnvironmentPassedToChild(t *testing.T) {
	handler := &recordingHandler{}
	p, err := Start("test", `sh -c "echo $HOLUS_DOMAIN"`, Options{
		Logger:        testLogger(),
		OutputHandler: handler,
		Env:           []string{"HOLUS_DOMAIN=trading"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.lines["stdout"]) != 1 || handler.lines["stdout"][0] != "trading" {
		t.Errorf("expected child to see HOLUS_DOMAIN=trading, got %v", handler.lines["stdout"])
	}
}

package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/api/models"
	"github.com/smazurov/holus/internal/heartbeat"
	"github.com/smazurov/holus/internal/mailbox"
)

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSendThenDrain(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, CreateSendCmd(), "", "--mailbox-dir", dir, "--from", "content-strategy", "job-tracker", `{"foo":1}`); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	out, err := run(t, CreateDrainCmd(), "", "--mailbox-dir", dir, "job-tracker")
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	var msgs []mailbox.Message
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(msgs) != 1 || msgs[0].From != "content-strategy" || string(msgs[0].Message) != `{"foo":1}` {
		t.Fatalf("unexpected messages %+v", msgs)
	}

	out, err = run(t, CreateDrainCmd(), "", "--mailbox-dir", dir, "job-tracker")
	if err != nil {
		t.Fatalf("second drain failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("second drain = %q, want []", out)
	}
}

func TestSendFromEnvAndStdin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOLUS_DOMAIN", "trading")
	t.Setenv("HOLUS_MAILBOX_DIR", dir)

	if _, err := run(t, CreateSendCmd(), "position closed\n", "job-tracker"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	msgs, err := mailbox.New(dir).Drain(context.Background(), "job-tracker")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].From != "trading" || string(msgs[0].Message) != `"position closed"` {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestSendRequiresSender(t *testing.T) {
	t.Setenv("HOLUS_DOMAIN", "")
	if _, err := run(t, CreateSendCmd(), "", "--mailbox-dir", t.TempDir(), "job-tracker", "hi"); err == nil {
		t.Error("expected error without --from")
	}
}

func TestHeartbeatCmd(t *testing.T) {
	dir := t.TempDir()
	before := time.Now().Add(-time.Second)

	if _, err := run(t, CreateHeartbeatCmd(), "", "--heartbeat-dir", dir, "trading"); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	last, err := heartbeat.NewMonitor(dir, time.Minute, nil).Last("trading")
	if err != nil {
		t.Fatal(err)
	}
	if last.Before(before) {
		t.Errorf("heartbeat %s older than %s", last, before)
	}
}

func TestHeartbeatCmdStateDir(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("HOLUS_HEARTBEAT_DIR", "")
	t.Setenv("HOLUS_DOMAIN", "trading")

	if _, err := run(t, CreateHeartbeatCmd(), "", "--state-dir", stateDir); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(stateDir, "heartbeats", "trading.heartbeat")); err != nil {
		t.Errorf("heartbeat file missing: %v", err)
	}
}

func TestValidateCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holus.toml")
	content := `
[supervisor]
max_restarts = 5
cooldown_seconds = 60
health_check_interval_seconds = 30
heartbeat_stale_threshold_seconds = 90

[domains.trading]
command = "sh -c 'exit 0'"

[domains.job-tracker]
command = "does-not-exist-holus"
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, CreateValidateCmd(), "", "-c", path)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ok (1 enabled)") || !strings.Contains(out, "disabled") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidateCmdUnresolvedCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holus.toml")
	content := "[domains.trading]\ncommand = \"does-not-exist-holus --flag\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, CreateValidateCmd(), "", "-c", path); err == nil {
		t.Error("expected error for unresolved command")
	}
	if _, err := run(t, CreateValidateCmd(), "", "-c", path, "--skip-resolve"); err != nil {
		t.Errorf("--skip-resolve should pass: %v", err)
	}
}

func TestStatusCmd(t *testing.T) {
	age := 4.0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/domains" {
			http.NotFound(w, r)
			return
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "admin" || p != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.DomainListData{
			Domains: []models.DomainInfo{
				{Name: "job-tracker", State: "exhausted", RestartCount: 5},
				{Name: "trading", State: "running", PID: 4242, HeartbeatAgeSeconds: &age},
			},
			Count: 2,
		})
	}))
	defer ts.Close()

	out, err := run(t, CreateStatusCmd(), "", "--url", ts.URL, "--username", "admin", "--password", "secret")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "job-tracker") || !strings.Contains(lines[1], "exhausted") || !strings.Contains(lines[1], "never") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "4242") || !strings.Contains(lines[2], "4s") {
		t.Errorf("row 2 = %q", lines[2])
	}

	if _, err := run(t, CreateStatusCmd(), "", "--url", ts.URL); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestRunWorkerExitCode(t *testing.T) {
	dir := t.TempDir()
	mon := heartbeat.NewMonitor(dir, time.Minute, nil)
	var stdout, stderr bytes.Buffer
	out := &passthrough{stdout: &stdout, stderr: &stderr}

	code := runWorker(context.Background(), mon, "trading", `sh -c 'echo up; echo warn >&2; sleep 0.1; exit 3'`,
		20*time.Millisecond, time.Second, slog.New(slog.DiscardHandler), out)

	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if strings.TrimSpace(stdout.String()) != "up" || strings.TrimSpace(stderr.String()) != "warn" {
		t.Errorf("stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
	if _, err := mon.Last("trading"); err != nil {
		t.Errorf("expected a heartbeat while running: %v", err)
	}
}

func TestRunWorkerContextCancelStops(t *testing.T) {
	mon := heartbeat.NewMonitor(t.TempDir(), time.Minute, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	code := runWorker(ctx, mon, "trading", "sleep 30", time.Second, time.Second,
		slog.New(slog.DiscardHandler), &passthrough{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("runWorker took %s after cancel", elapsed)
	}
	if code != 143 {
		t.Errorf("exit code = %d, want 143 (SIGTERM)", code)
	}
}

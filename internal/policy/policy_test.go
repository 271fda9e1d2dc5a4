package policy

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	tests := []struct {
		name        string
		rec         Record
		wantAction  Action
		wantRetryIn time.Duration
	}{
		{
			name:       "never spawned",
			rec:        Record{},
			wantAction: Respawn,
		},
		{
			name:        "first restart waits for cooldown after initial spawn",
			rec:         Record{RestartCount: 0, LastRestartAt: now.Add(-30 * time.Second)},
			wantAction:  Skip,
			wantRetryIn: 30 * time.Second,
		},
		{
			name:       "cooldown elapsed",
			rec:        Record{RestartCount: 2, LastRestartAt: now.Add(-61 * time.Second)},
			wantAction: Respawn,
		},
		{
			name:       "cooldown boundary is inclusive",
			rec:        Record{RestartCount: 1, LastRestartAt: now.Add(-60 * time.Second)},
			wantAction: Respawn,
		},
		{
			name:        "within cooldown",
			rec:         Record{RestartCount: 1, LastRestartAt: now.Add(-30 * time.Second)},
			wantAction:  Skip,
			wantRetryIn: 30 * time.Second,
		},
		{
			name:       "limit reached",
			rec:        Record{RestartCount: 5, LastRestartAt: now.Add(-time.Hour)},
			wantAction: Exhausted,
		},
		{
			name:       "limit takes precedence over cooldown",
			rec:        Record{RestartCount: 5, LastRestartAt: now.Add(-time.Second)},
			wantAction: Exhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(cfg, tt.rec, now)
			if d.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s (reason: %s)", d.Action, tt.wantAction, d.Reason)
			}
			if d.RetryIn != tt.wantRetryIn {
				t.Errorf("RetryIn = %v, want %v", d.RetryIn, tt.wantRetryIn)
			}
			if d.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestDecideZeroMaxRestarts(t *testing.T) {
	d := Decide(Config{MaxRestarts: 0, Cooldown: time.Minute}, Record{}, time.Now())
	if d.Action != Exhausted {
		t.Errorf("expected Exhausted with MaxRestarts=0, got %s", d.Action)
	}
}

// With a 30s tick and a 60s cooldown, a domain that crashes right after being
// respawned is skipped on the next tick and respawned on the one after.
func TestDecideTickCooldownInterplay(t *testing.T) {
	cfg := Config{MaxRestarts: 5, Cooldown: 60 * time.Second}
	respawnedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{RestartCount: 1, LastRestartAt: respawnedAt}

	if d := Decide(cfg, rec, respawnedAt.Add(30*time.Second)); d.Action != Skip {
		t.Fatalf("tick +30s: expected Skip, got %s", d.Action)
	}
	if d := Decide(cfg, rec, respawnedAt.Add(60*time.Second)); d.Action != Respawn {
		t.Fatalf("tick +60s: expected Respawn, got %s", d.Action)
	}
}

func TestDecideSequenceReachesExhausted(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{}

	respawns := 0
	for i := 0; i < 10; i++ {
		d := Decide(cfg, rec, now)
		if d.Action == Exhausted {
			break
		}
		if d.Action != Respawn {
			t.Fatalf("iteration %d: unexpected %s", i, d.Action)
		}
		respawns++
		rec.RestartCount++
		rec.LastRestartAt = now
		now = now.Add(cfg.Cooldown)
	}

	if respawns != cfg.MaxRestarts {
		t.Errorf("expected %d respawns before exhaustion, got %d", cfg.MaxRestarts, respawns)
	}
}

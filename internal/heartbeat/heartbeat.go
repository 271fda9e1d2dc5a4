// Package heartbeat tracks worker liveness through per-domain heartbeat files.
//
// A worker proves it is alive by overwriting <dir>/<domain>.heartbeat with the
// current time as decimal seconds since the Unix epoch. The supervisor reads
// the file on every tick and treats a missing, unreadable or old record as
// stale.
package heartbeat

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// DefaultStaleThreshold is used when NewMonitor is given a non-positive threshold.
const DefaultStaleThreshold = 90 * time.Second

const fileSuffix = ".heartbeat"

// ErrNoHeartbeat is returned by Last when a domain has never written a heartbeat.
var ErrNoHeartbeat = errors.New("no heartbeat recorded")

// Monitor reads and writes heartbeat records in one directory.
type Monitor struct {
	dir       string
	threshold time.Duration
	logger    *slog.Logger
}

// NewMonitor returns a Monitor for dir. The directory is created on first Record.
func NewMonitor(dir string, threshold time.Duration, logger *slog.Logger) *Monitor {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{dir: dir, threshold: threshold, logger: logger}
}

// Dir returns the heartbeat directory.
func (m *Monitor) Dir() string { return m.dir }

// Threshold returns the staleness threshold.
func (m *Monitor) Threshold() time.Duration { return m.threshold }

// Path returns the heartbeat file for domain.
func (m *Monitor) Path(domain string) string {
	return filepath.Join(m.dir, domain+fileSuffix)
}

// Record overwrites the heartbeat for domain with now.
func (m *Monitor) Record(domain string, now time.Time) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create heartbeat dir: %w", err)
	}
	data := []byte(FormatTimestamp(now))
	if err := renameio.WriteFile(m.Path(domain), data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat for %s: %w", domain, err)
	}
	return nil
}

// Last returns the time of the most recent heartbeat for domain.
func (m *Monitor) Last(domain string) (time.Time, error) {
	data, err := os.ReadFile(m.Path(domain))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, ErrNoHeartbeat
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read heartbeat for %s: %w", domain, err)
	}
	ts, err := ParseTimestamp(string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("heartbeat for %s: %w", domain, err)
	}
	return ts, nil
}

// Age returns how long ago domain last reported. ok is false when no valid
// record exists.
func (m *Monitor) Age(domain string, now time.Time) (age time.Duration, ok bool) {
	last, err := m.Last(domain)
	if err != nil {
		return 0, false
	}
	return now.Sub(last), true
}

// IsStale reports whether domain has failed to heartbeat within the
// threshold. A missing or unreadable record counts as stale.
func (m *Monitor) IsStale(domain string, now time.Time) bool {
	last, err := m.Last(domain)
	if errors.Is(err, ErrNoHeartbeat) {
		return true
	}
	if err != nil {
		m.logger.Warn("Unreadable heartbeat, treating as stale", "domain", domain, "error", err)
		return true
	}
	return now.Sub(last) > m.threshold
}

// Remove deletes the heartbeat record for domain. A missing record is not an error.
func (m *Monitor) Remove(domain string) error {
	err := os.Remove(m.Path(domain))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove heartbeat for %s: %w", domain, err)
	}
	return nil
}

// FormatTimestamp renders t as decimal seconds since the Unix epoch.
func FormatTimestamp(t time.Time) string {
	secs := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(secs, 'f', 6, 64)
}

// ParseTimestamp parses decimal seconds since the Unix epoch. A fractional
// part is optional.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return time.Time{}, fmt.Errorf("malformed timestamp %q", s)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))), nil
}

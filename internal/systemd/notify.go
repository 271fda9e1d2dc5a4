// Package systemd reports supervisor lifecycle to the service manager via
// sd_notify. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends readiness, status and watchdog notifications.
type Notifier struct {
	logger   *slog.Logger
	unsetEnv bool
	send     func(unsetEnv bool, state string) (bool, error)
	watchdog func(unsetEnv bool) (time.Duration, error)
}

// NewNotifier creates a notifier backed by the systemd notify socket.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:   logger,
		send:     daemon.SdNotify,
		watchdog: daemon.SdWatchdogEnabled,
	}
}

func (n *Notifier) notify(state string) bool {
	sent, err := n.send(n.unsetEnv, state)
	if err != nil {
		n.logger.Debug("sd_notify failed", "state", state, "error", err)
		return false
	}
	return sent
}

// Ready signals that every domain has been started.
func (n *Notifier) Ready() bool {
	return n.notify(daemon.SdNotifyReady)
}

// Stopping signals that shutdown has begun.
func (n *Notifier) Stopping() bool {
	return n.notify(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) bool {
	return n.notify("STATUS=" + fmt.Sprintf(format, args...))
}

// Watchdog pings the service watchdog.
func (n *Notifier) Watchdog() bool {
	return n.notify(daemon.SdNotifyWatchdog)
}

// WatchdogTimeout returns the unit's WatchdogSec, or 0 when the watchdog
// is disabled.
func (n *Notifier) WatchdogTimeout() time.Duration {
	timeout, err := n.watchdog(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return 0
	}
	return timeout
}

package supervisor

import (
	"slices"

	"github.com/smazurov/holus/internal/process"
	"github.com/smazurov/holus/internal/shutdown"
)

// Environment variables passed to every domain worker.
const (
	EnvDomain       = "HOLUS_DOMAIN"
	EnvHeartbeatDir = "HOLUS_HEARTBEAT_DIR"
	EnvMailboxDir   = "HOLUS_MAILBOX_DIR"
)

// Handle is a spawned domain process.
type Handle interface {
	shutdown.Target
	Pid() int
}

// Launcher spawns domain processes.
type Launcher interface {
	Launch(name, command string) (Handle, error)
}

// ProcessLauncher starts each domain as an OS process in its own process group.
type ProcessLauncher struct {
	Options      process.Options
	HeartbeatDir string
	MailboxDir   string
}

// Launch starts command for domain name.
func (l *ProcessLauncher) Launch(name, command string) (Handle, error) {
	opts := l.Options
	opts.Env = append(slices.Clone(opts.Env),
		EnvDomain+"="+name,
		EnvHeartbeatDir+"="+l.HeartbeatDir,
		EnvMailboxDir+"="+l.MailboxDir,
	)
	p, err := process.Start(name, command, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

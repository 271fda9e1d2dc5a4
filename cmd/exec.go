package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/heartbeat"
	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/process"
)

// passthrough copies child output lines to the wrapper's own stdout/stderr
// so the supervisor sees them unchanged.
type passthrough struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

func (p *passthrough) HandleLine(source, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if source == "stderr" {
		fmt.Fprintln(p.stderr, line)
		return
	}
	fmt.Fprintln(p.stdout, line)
}

// CreateExecCmd creates the exec command.
func CreateExecCmd() *cobra.Command {
	var interval time.Duration
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "exec [flags] -- command [args...]",
		Short: "Run a command as a heartbeating domain worker",
		Long: `Runs a command that does not heartbeat on its own. A heartbeat is written ` +
			`every interval while the command is alive; SIGTERM and SIGINT are forwarded to its ` +
			`process group. Exits with the command's exit code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("info", false)
			domain, err := domainArg(nil)
			if d, _ := cmd.Flags().GetString("domain"); d != "" {
				domain, err = d, nil
			}
			if err != nil {
				return err
			}
			logger := logging.GetLogger("exec").With("domain", domain)
			mon := heartbeat.NewMonitor(heartbeatDir(cmd), 0, logger)

			code := runWorker(cmd.Context(), mon, domain, process.JoinCommand(args), interval, grace, logger,
				&passthrough{stdout: cmd.OutOrStdout(), stderr: cmd.ErrOrStderr()})
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().String("domain", "", "Domain name (default $HOLUS_DOMAIN)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Heartbeat interval (default a third of the stale threshold)")
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "Time the command gets to exit after a forwarded signal")
	cmd.Flags().String("heartbeat-dir", "", "Heartbeat directory (default $HOLUS_HEARTBEAT_DIR)")
	addStateDirFlag(cmd)
	return cmd
}

// runWorker starts command, heartbeats for domain while it runs and returns
// its exit code. A received SIGTERM/SIGINT is forwarded; if the command
// outlives grace it is killed.
func runWorker(
	ctx context.Context,
	mon *heartbeat.Monitor,
	domain, command string,
	interval, grace time.Duration,
	logger *slog.Logger,
	out process.OutputHandler,
) int {
	p, err := process.Start(domain, command, process.Options{
		Logger:        logger,
		OutputLogger:  slog.New(slog.DiscardHandler),
		OutputHandler: out,
	})
	if err != nil {
		logger.Error("Failed to start command", "error", err)
		return 127
	}

	beatCtx, stopBeat := context.WithCancel(ctx)
	defer stopBeat()
	go heartbeat.NewBeater(mon, domain, interval).Run(beatCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case <-p.Done():
	case sig := <-sigCh:
		logger.Info("Forwarding signal", "signal", sig)
		stopBeat()
		return p.Stop(grace)
	case <-ctx.Done():
		stopBeat()
		return p.Stop(grace)
	}
	return p.ExitCode()
}

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/heartbeat"
	"github.com/smazurov/holus/internal/logging"
)

// CreateHeartbeatCmd creates the heartbeat command for shell workers.
func CreateHeartbeatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartbeat [domain]",
		Short: "Record a heartbeat for a domain",
		Long: `Writes the current time to the domain's heartbeat file. Workers that cannot ` +
			`link the heartbeat package call this more often than the stale threshold.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("warn", false)
			domain, err := domainArg(args)
			if err != nil {
				return err
			}
			mon := heartbeat.NewMonitor(heartbeatDir(cmd), 0, logging.GetLogger("heartbeat"))
			return mon.Record(domain, time.Now())
		},
	}
	cmd.Flags().String("heartbeat-dir", "", "Heartbeat directory (default $HOLUS_HEARTBEAT_DIR)")
	addStateDirFlag(cmd)
	return cmd
}

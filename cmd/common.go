// Package cmd holds the holus subcommands used by workers and operators.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/config"
	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/supervisor"
)

// initLogging sets up minimal logging for short-lived commands. Logs go to
// stderr so stdout stays machine readable.
func initLogging(level string, json bool) {
	cfg := logging.Config{Level: level, Format: "text"}
	if json {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

// dirFlag resolves a directory from the flag, then the worker environment,
// then the configured state dir.
func dirFlag(cmd *cobra.Command, flag, env string, fromStateDir func(string) string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	stateDir, _ := cmd.Flags().GetString("state-dir")
	if stateDir == "" {
		stateDir = config.DefaultOptions().StateDir
	}
	return fromStateDir(stateDir)
}

// domainArg returns args[0] or $HOLUS_DOMAIN.
func domainArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if d := os.Getenv(supervisor.EnvDomain); d != "" {
		return d, nil
	}
	return "", fmt.Errorf("domain not given and %s is not set", supervisor.EnvDomain)
}

func addStateDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("state-dir", "", "State directory (default from config)")
}

func heartbeatDir(cmd *cobra.Command) string {
	return dirFlag(cmd, "heartbeat-dir", supervisor.EnvHeartbeatDir, config.HeartbeatDir)
}

func mailboxDir(cmd *cobra.Command) string {
	return dirFlag(cmd, "mailbox-dir", supervisor.EnvMailboxDir, config.MailboxDir)
}

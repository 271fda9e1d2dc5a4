package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/holus/cmd"
	"github.com/smazurov/holus/internal/config"
	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/version"
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Error("Failed to load config", "error", loadErr)
			os.Exit(1)
		}

		logging.Initialize(opts.Logging())

		// Subcommands share this callback; the daemon is only built when the
		// root command starts.
		var d *daemon
		built := make(chan struct{})

		hooks.OnStart(func() {
			var err error
			d, err = newDaemon(opts)
			if err != nil {
				// Configuration problems are the only fatal errors.
				logging.GetLogger("main").Error("Invalid configuration", "config", opts.Config, "error", err)
				fmt.Fprintf(os.Stderr, "holus: %v\n", err)
				os.Exit(1)
			}
			d.start()
			close(built)
			d.run()
		})

		hooks.OnStop(func() {
			<-built
			d.shutdown()
		})
	})

	root := cli.Root()
	root.Use = "holus"
	root.Short = "Process supervisor for domain workers"
	root.Version = version.String()
	root.AddCommand(
		cmd.CreateExecCmd(),
		cmd.CreateHeartbeatCmd(),
		cmd.CreateSendCmd(),
		cmd.CreateDrainCmd(),
		cmd.CreateStatusCmd(),
		cmd.CreateValidateCmd(),
	)

	cli.Run()
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/config"
	"github.com/smazurov/holus/internal/logging"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	var skipResolve bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		Long: `Loads the configuration with the same precedence as the supervisor, validates ` +
			`the supervisor settings and domain table, and checks every enabled command resolves on PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initLogging("info", false)

			opts := config.DefaultOptions()
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				opts.Config = path
			}
			return validateConfig(cmd, opts, !skipResolve)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&skipResolve, "skip-resolve", false, "Do not look up commands on PATH")
	return cmd
}

func validateConfig(cmd *cobra.Command, opts *config.Options, resolve bool) error {
	out := cmd.OutOrStdout()
	if err := config.LoadConfig(opts, nil); err != nil {
		return err
	}
	domains, err := config.LoadDomains(opts.Config)
	if err != nil {
		return err
	}

	errs := []error{config.Validate(opts.Supervisor(), domains, logging.GetLogger("config"))}
	if resolve {
		errs = append(errs, config.ResolveCommands(domains)...)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, name := range domains.Names() {
		status := "enabled"
		if !domains[name].IsEnabled() {
			status = "disabled"
		}
		fmt.Fprintf(out, "%-20s %-8s %s\n", name, status, domains[name].Command)
	}
	fmt.Fprintf(out, "%s: ok (%d enabled)\n", opts.Config, len(domains.Enabled()))
	return nil
}

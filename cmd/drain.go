package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/mailbox"
)

// CreateDrainCmd creates the drain command.
func CreateDrainCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "drain [domain]",
		Short: "Read and clear a domain's inbox",
		Long: `Prints the pending messages of a domain as a JSON array and empties the inbox. ` +
			`With --follow, keeps watching the inbox and prints one JSON message per line as they arrive.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("warn", false)
			domain, err := domainArg(args)
			if err != nil {
				return err
			}
			mb := mailbox.New(mailboxDir(cmd), mailbox.WithLogger(logging.GetLogger("mailbox")))
			out := cmd.OutOrStdout()

			if !follow {
				msgs, err := mb.Drain(cmd.Context(), domain)
				if err != nil {
					return err
				}
				return writeJSON(out, msgs)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return followInbox(ctx, mb, domain, out)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep draining as messages arrive")
	cmd.Flags().String("mailbox-dir", "", "Mailbox directory (default $HOLUS_MAILBOX_DIR)")
	addStateDirFlag(cmd)
	return cmd
}

func followInbox(ctx context.Context, mb *mailbox.Mailbox, domain string, out io.Writer) error {
	enc := json.NewEncoder(out)
	err := mb.Watch(ctx, domain, func(msgs []mailbox.Message) {
		for _, m := range msgs {
			if err := enc.Encode(m); err != nil {
				logging.GetLogger("mailbox").Warn("Failed to write message", "id", m.ID, "error", err)
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/logging"
	"github.com/smazurov/holus/internal/mailbox"
	"github.com/smazurov/holus/internal/supervisor"
)

// CreateSendCmd creates the send command.
func CreateSendCmd() *cobra.Command {
	var from string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <to> [message]",
		Short: "Append a message to a domain's inbox",
		Long: `Sends a message to another domain. The message is parsed as JSON when ` +
			`possible and sent as a string otherwise. With no message argument it is read from stdin.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("warn", false)

			if from == "" {
				from = os.Getenv(supervisor.EnvDomain)
			}
			if from == "" {
				return fmt.Errorf("--from not given and %s is not set", supervisor.EnvDomain)
			}

			var raw []byte
			if len(args) == 2 {
				raw = []byte(args[1])
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read message: %w", err)
				}
				raw = data
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			mb := mailbox.New(mailboxDir(cmd), mailbox.WithLogger(logging.GetLogger("mailbox")))
			msg, err := mb.Send(ctx, from, args[0], payload(raw))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Sending domain (default $HOLUS_DOMAIN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	cmd.Flags().String("mailbox-dir", "", "Mailbox directory (default $HOLUS_MAILBOX_DIR)")
	addStateDirFlag(cmd)
	return cmd
}

// payload keeps valid JSON as-is and wraps anything else as a string.
func payload(raw []byte) any {
	trimmed := trimNewline(raw)
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(trimmed)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

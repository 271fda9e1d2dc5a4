package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/smazurov/holus/internal/api/models"
	"github.com/smazurov/holus/internal/nats"
)

// CreateStatusCmd creates the status command.
func CreateStatusCmd() *cobra.Command {
	var url, natsURL, username, password string
	var asJSON bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every supervised domain",
		Long: `Queries a running supervisor and prints one row per domain: state, pid, ` +
			`restart count, last restart and heartbeat age. Uses the HTTP API, or NATS with --nats.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var domains []models.DomainInfo
			var err error
			if natsURL != "" {
				err = nats.RequestStatus(natsURL, timeout, &domains)
			} else {
				domains, err = fetchDomains(url, username, password, timeout)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), domains)
			}
			return printDomains(cmd.OutOrStdout(), domains, time.Now())
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8090", "Supervisor API base URL")
	cmd.Flags().StringVar(&natsURL, "nats", "", "Query over NATS at this URL instead of HTTP")
	cmd.Flags().StringVar(&username, "username", "", "Basic auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic auth password")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

func fetchDomains(baseURL, username, password string, timeout time.Duration) ([]models.DomainInfo, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/domains", nil)
	if err != nil {
		return nil, err
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supervisor not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var list models.DomainListData
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return list.Domains, nil
}

func printDomains(out io.Writer, domains []models.DomainInfo, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tSTATE\tPID\tRESTARTS\tLAST RESTART\tHEARTBEAT")
	for _, d := range domains {
		pid := "-"
		if d.PID > 0 {
			pid = fmt.Sprint(d.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			d.Name, d.State, pid, d.RestartCount, since(d.LastRestartAt, now), heartbeatAge(d.HeartbeatAgeSeconds))
	}
	return w.Flush()
}

func since(ts string, now time.Time) string {
	if ts == "" {
		return "never"
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return now.Sub(t).Truncate(time.Second).String() + " ago"
}

func heartbeatAge(secs *float64) string {
	if secs == nil {
		return "none"
	}
	return (time.Duration(*secs * float64(time.Second))).Truncate(time.Second).String()
}

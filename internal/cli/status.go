package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/harun/apibridge/pkg/gateway"
	"github.com/spf13/cobra"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long: `Show the status of a running concurrent gateway and its open sessions.
The address and inbound token come from the configuration unless --url is set.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "gateway base URL (default built from host and port)")
	rootCmd.AddCommand(statusCmd)
}

type healthReply struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type sessionsReply struct {
	Sessions []gateway.SessionInfo `json:"sessions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	base := statusURL
	if base == "" {
		base = "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	client := &http.Client{Timeout: 5 * time.Second}
	out := cmd.OutOrStdout()

	var health healthReply
	if _, err := getJSON(client, base+"/healthz", "", &health); err != nil {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}
	fmt.Fprintf(out, "Status: %s\n", health.Status)
	fmt.Fprintf(out, "Address: %s\n", base)

	var sessions sessionsReply
	code, err := getJSON(client, base+"/sessions", cfg.InboundToken, &sessions)
	if code == http.StatusUnauthorized {
		fmt.Fprintf(out, "Sessions: %d (details need the inbound token)\n", health.Sessions)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	fmt.Fprintf(out, "Sessions: %d\n", len(sessions.Sessions))
	if len(sessions.Sessions) == 0 {
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tREMOTE\tCONNECTED\tIDLE")
	for _, s := range sessions.Sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Kind, s.RemoteAddr,
			formatDuration(now.Sub(s.ConnectedAt)),
			formatDuration(now.Sub(s.LastActivity)))
	}
	return tw.Flush()
}

func getJSON(client *http.Client, url, token string, v interface{}) (int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(v)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// lockRow mirrors one entry of GET /items/locks.
type lockRow struct {
	HolderID          string    `json:"holder_id"`
	HolderDisplayName string    `json:"holder_display_name"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func newLocksCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Show who is editing what on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			locks, err := fetchLocks(ctx, http.DefaultClient, server)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderLocks(locks, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of the gems API")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func fetchLocks(ctx context.Context, client *http.Client, server string) (map[string]lockRow, error) {
	url := strings.TrimRight(server, "/") + "/items/locks"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch locks: %s returned %s", url, resp.Status)
	}
	var locks map[string]lockRow
	if err := json.NewDecoder(resp.Body).Decode(&locks); err != nil {
		return nil, fmt.Errorf("failed to decode locks: %w", err)
	}
	return locks, nil
}

func renderLocks(locks map[string]lockRow, now time.Time) string {
	if len(locks) == 0 {
		return dimStyle.Render("No active locks.")
	}

	keys := make([]string, 0, len(locks))
	for k := range locks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		l := locks[k]
		remaining := l.ExpiresAt.Sub(now).Truncate(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		rows = append(rows, []string{
			k,
			fmt.Sprintf("%s <%s>", l.HolderDisplayName, l.HolderID),
			l.AcquiredAt.Local().Format("15:04:05"),
			remaining.String(),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ITEM", "HOLDER", "SINCE", "EXPIRES IN").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

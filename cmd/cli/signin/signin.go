package signin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/crucial707/autosignin/cmd/cli/config"
	"github.com/crucial707/autosignin/cmd/cli/output"
	"github.com/crucial707/autosignin/internal/models"
	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// InitSignIn registers the run/history/sites/targets commands.
func InitSignIn(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		runCmd(),
		historyCmd(),
		sitesCmd(),
		targetsCmd(),
	)
}

// ==========================
// RUN
// ==========================
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [site...]",
		Short: "Start a check-in run",
		Long:  "Ask the server to check in now. Without arguments the configured sites are used; custom sites always run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{}
			if len(args) > 0 {
				payload["sites"] = args
			}
			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := callAPI("POST", "/signin", payload, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

// ==========================
// HISTORY
// ==========================
func historyCmd() *cobra.Command {
	var days int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent check-in results",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Count   int            `json:"count"`
				History models.History `json:"history"`
			}
			if err := callAPI("GET", fmt.Sprintf("/history?days=%d", days), nil, &resp); err != nil {
				return err
			}
			if asJSON {
				return output.RenderJSON(resp)
			}
			if resp.Count == 0 {
				fmt.Println("No check-in history.")
				return nil
			}
			output.RenderTable([]string{"Date", "Site", "Time", "Result", "Message"}, historyRows(resp.History))
			fmt.Printf("%d records\n", resp.Count)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "How many days back to show (1-30)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

// historyRows flattens h newest date first, sites alphabetical within a day.
func historyRows(h models.History) [][]interface{} {
	dates := make([]string, 0, len(h))
	for d := range h {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var rows [][]interface{}
	for _, d := range dates {
		sites := make([]string, 0, len(h[d]))
		for s := range h[d] {
			sites = append(sites, s)
		}
		sort.Strings(sites)
		for _, s := range sites {
			e := h[d][s]
			result := "✅"
			if !e.Success {
				result = "❌"
			}
			rows = append(rows, []interface{}{d, s, e.Time, result, e.Message})
		}
	}
	return rows
}

// ==========================
// SITES
// ==========================
func sitesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List managed sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Items []models.ManagedSite `json:"items"`
				Total int                  `json:"total"`
			}
			if err := callAPI("GET", "/sites", nil, &resp); err != nil {
				return err
			}
			if asJSON {
				return output.RenderJSON(resp.Items)
			}
			rows := make([][]interface{}, 0, len(resp.Items))
			for _, s := range resp.Items {
				rows = append(rows, []interface{}{s.ID, s.Name, s.URL, s.Domain})
			}
			output.RenderTable([]string{"ID", "Name", "URL", "Domain"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

// ==========================
// TARGETS
// ==========================
func targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the sites a default run checks in against",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				State string `json:"state"`
				Items []struct {
					ID      string `json:"id"`
					Kind    string `json:"kind"`
					BaseURL string `json:"base_url"`
				} `json:"items"`
			}
			if err := callAPI("GET", "/targets", nil, &resp); err != nil {
				return err
			}
			rows := make([][]interface{}, 0, len(resp.Items))
			for _, t := range resp.Items {
				rows = append(rows, []interface{}{t.ID, t.Kind, t.BaseURL})
			}
			output.RenderTable([]string{"ID", "Kind", "Base URL"}, rows)
			fmt.Println("State:", resp.State)
			return nil
		},
	}
}

// callAPI sends an authenticated request and decodes a 2xx JSON body into out.
func callAPI(method, path string, payload interface{}, out interface{}) error {
	token, err := config.LoadToken()
	if err != nil {
		return fmt.Errorf("no API token, run \"signin token\" first")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, config.APIURL()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

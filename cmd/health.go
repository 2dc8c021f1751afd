package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/desktopd/internal/cache"
	"github.com/mj1618/desktopd/internal/output"
	"github.com/mj1618/desktopd/internal/router"
)

// HealthResult is the output of the health command.
type HealthResult struct {
	Backends []router.BackendHealth `yaml:"backends"        json:"backends"`
	Apps     []router.AppHealth     `yaml:"apps,omitempty"  json:"apps,omitempty"`
	Cache    *cache.Stats           `yaml:"cache,omitempty" json:"cache,omitempty"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show backend, app and cache health from a running daemon",
	Long: `Query the diagnostics API of a running "desktopd serve --diagnostics" and print
per-backend health, per-app health and cache statistics. Nothing is routed.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("addr", "", "Diagnostics address (default diagnostics.addr)")
	healthCmd.Flags().StringSlice("app", nil, "Apps to report (default: every app the daemon has routed)")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")
}

func runHealth(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = appConfig.Diagnostics.Addr
	}
	apps, _ := cmd.Flags().GetStringSlice("app")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := fetchHealth(ctx, http.DefaultClient, baseURL(addr), apps)
	if err != nil {
		return err
	}
	return output.Print(result)
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	return "http://" + addr
}

// fetchHealth collects the app health report and cache stats from the
// diagnostics API at base.
func fetchHealth(ctx context.Context, client *http.Client, base string, apps []string) (*HealthResult, error) {
	q := url.Values{}
	for _, app := range apps {
		q.Add("app", app)
	}
	var result HealthResult
	if err := getJSON(ctx, client, base+"/health/apps?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	var stats cache.Stats
	if err := getJSON(ctx, client, base+"/cache/stats", &stats); err != nil {
		return nil, err
	}
	result.Cache = &stats
	return &result, nil
}

func getJSON(ctx context.Context, client *http.Client, u string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("diagnostics unreachable (is the daemon running with --diagnostics?): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

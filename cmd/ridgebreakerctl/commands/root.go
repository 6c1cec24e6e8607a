// Package commands implements the ridgebreakerctl CLI commands.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverAddr is the ridgebreaker daemon's control API address (host:port).
	serverAddr string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	httpClient = &http.Client{Timeout: 10 * time.Second}
)

// rootCmd is the top-level cobra command for ridgebreakerctl.
var rootCmd = &cobra.Command{
	Use:   "ridgebreakerctl",
	Short: "CLI client for the ridgebreaker daemon",
	Long:  "ridgebreakerctl communicates with the ridgebreaker daemon's JSON control API to manage BGP, LDP, and IS-IS peering.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"ridgebreaker daemon control API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(bgpCmd())
	rootCmd.AddCommand(ldpCmd())
	rootCmd.AddCommand(isisCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// controlGet issues a GET request against the control API and decodes the
// JSON response body into out.
func controlGet(path string, out any) error {
	resp, err := httpClient.Get("http://" + serverAddr + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("GET %s: %w", path, decodeControlError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// controlPost issues a POST request with a JSON-encoded body against the
// control API.
func controlPost(path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", path, err)
	}

	req, err := http.NewRequest(http.MethodPost, "http://"+serverAddr+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("POST %s: %w", path, decodeControlError(resp))
	}
	return nil
}

type controlErrorBody struct {
	Error string `json:"error"`
}

// decodeControlError reads the {"error": "..."} body the control API
// writes on any non-2xx response (internal/control.writeError).
func decodeControlError(resp *http.Response) error {
	var body controlErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("status %s", resp.Status)
	}
	return fmt.Errorf("%s: %s", resp.Status, body.Error)
}

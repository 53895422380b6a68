package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running service's /status endpoint",
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query the running service's /stats endpoint",
	RunE:  runStats,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the running service's /health endpoint",
	RunE:  runHealth,
}

func fetchOpsEndpoint(path string) (map[string]interface{}, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client := http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + cfg.HTTPServer.Addr + path)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s: %s", path, resp.Status, body)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

func printOpsResult(result map[string]interface{}) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	result, err := fetchOpsEndpoint("/status")
	if err != nil {
		return err
	}
	return printOpsResult(result)
}

func runStats(cmd *cobra.Command, args []string) error {
	result, err := fetchOpsEndpoint("/stats")
	if err != nil {
		return err
	}
	return printOpsResult(result)
}

func runHealth(cmd *cobra.Command, args []string) error {
	result, err := fetchOpsEndpoint("/health")
	if err != nil {
		return err
	}
	return printOpsResult(result)
}

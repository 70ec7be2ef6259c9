package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect workers registered with a running orchestrator",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workers",
	RunE:  runWorkersList,
}

func init() {
	workersCmd.AddCommand(workersListCmd)
}

type remoteWorker struct {
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	Description string `json:"description"`
}

func runWorkersList(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Root().PersistentFlags().GetString("addr")
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(addr + "/mcp/servers")
	if err != nil {
		return fmt.Errorf("orchestratord: list workers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orchestratord: list workers: unexpected status %s", resp.Status)
	}

	var workers []remoteWorker
	if err := json.NewDecoder(resp.Body).Decode(&workers); err != nil {
		return fmt.Errorf("orchestratord: decode worker list: %w", err)
	}

	if len(workers) == 0 {
		fmt.Println("no workers registered")
		return nil
	}
	fmt.Printf("%-20s %-30s %s\n", "NAME", "ENDPOINT", "DESCRIPTION")
	for _, w := range workers {
		fmt.Printf("%-20s %-30s %s\n", w.Name, w.Endpoint, w.Description)
	}
	return nil
}

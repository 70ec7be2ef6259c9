// Command orchestratord runs the agent orchestrator: the HTTP/WebSocket
// execution API, the worker registry, and the package installer, all backed
// by a containerd-managed worker/trigger fleet.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orchestratord",
	Short: "Multi-agent orchestrator daemon and CLI",
	Long: `orchestratord runs the agent orchestrator core: workflow execution,
agent and team dispatch, worker containers, and signed package installs,
exposed over HTTP and WebSocket.

Run "orchestratord serve" to start the daemon, or use the install/workers
subcommands to operate on it.`,
}

func init() {
	rootCmd.PersistentFlags().String("addr", "http://localhost:8088", "orchestrator API address, for client subcommands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(workersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

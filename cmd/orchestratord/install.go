package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/atlasrun/orchestrator/containermgr"
	"github.com/atlasrun/orchestrator/pkginstall"
)

var installCmd = &cobra.Command{
	Use:   "install KIND NAME VERSION",
	Short: "Install a signed package (agent, mcp, team or trigger) from the catalog",
	Long: `Fetches, verifies and installs one package from the configured catalog.
Team packages recursively install their declared agent/mcp dependencies.
mcp and trigger packages additionally start a worker container.`,
	Args: cobra.ExactArgs(3),
	RunE: runInstall,
}

func init() {
	flags := installCmd.Flags()
	flags.String("data-dir", "./data", "root directory for the package store and publisher keys")
	flags.String("catalog-url", "", "remote package catalog base URL")
	flags.String("containerd-socket", "", "containerd socket path; required to install mcp/trigger packages")
	flags.String("containerd-namespace", "orchestrator", "containerd namespace for worker/trigger containers")
	flags.String("cni-conf-dir", "/etc/cni/net.d", "CNI network configuration directory")
	flags.String("workflow-id", "", "workflow a trigger package should invoke (trigger kind only)")
	flags.String("team-id", "", "team a trigger package should invoke (trigger kind only)")
	flags.Bool("host-network", false, "run an mcp/trigger container on the host network")
	flags.Int("port", 0, "port to publish for an mcp/trigger container")
}

func runInstall(cmd *cobra.Command, args []string) error {
	kind, name, version := pkginstall.Kind(args[0]), args[1], args[2]

	flags := cmd.Flags()
	dataDir, _ := flags.GetString("data-dir")
	catalogURL, _ := flags.GetString("catalog-url")
	containerdSocket, _ := flags.GetString("containerd-socket")
	containerdNamespace, _ := flags.GetString("containerd-namespace")
	cniConfDir, _ := flags.GetString("cni-conf-dir")
	workflowID, _ := flags.GetString("workflow-id")
	teamID, _ := flags.GetString("team-id")
	hostNetwork, _ := flags.GetBool("host-network")
	port, _ := flags.GetInt("port")

	ctx := context.Background()

	var containers pkginstall.ContainerInstaller
	if containerdSocket != "" {
		mgr, err := containermgr.New(ctx, containermgr.Options{
			SocketPath: containerdSocket,
			Namespace:  containerdNamespace,
			CNIConfDir: cniConfDir,
			StateDir:   filepath.Join(dataDir, "containers"),
		})
		if err != nil {
			return fmt.Errorf("orchestratord: connect to containerd: %w", err)
		}
		defer func() { _ = mgr.Close() }()
		containers = mgr
	} else if kind == pkginstall.KindMCP || kind == pkginstall.KindTrigger {
		return fmt.Errorf("orchestratord: installing kind %q requires --containerd-socket", kind)
	}

	keyring, err := pkginstall.NewKeyring(filepath.Join(dataDir, "registry", "publishers"))
	if err != nil {
		return fmt.Errorf("orchestratord: load publisher keyring: %w", err)
	}

	installer := pkginstall.New(pkginstall.Options{
		Catalog:    pkginstall.NewCatalogClient(catalogURL, nil),
		Keyring:    keyring,
		Containers: containers,
		FSRoot:     filepath.Join(dataDir, "registry"),
	})

	resource, err := installer.Install(ctx, kind, name, version, pkginstall.InstallSpec{
		WorkflowID:  workflowID,
		TeamID:      teamID,
		HostNetwork: hostNetwork,
		Port:        port,
	})
	if err != nil {
		return fmt.Errorf("orchestratord: install %s/%s@%s: %w", kind, name, version, err)
	}

	fmt.Printf("installed %s %s@%s\n", resource.Kind, resource.Name, resource.Version)
	if resource.ContainerID != "" {
		fmt.Printf("  container: %s\n", resource.ContainerID)
	}
	return nil
}

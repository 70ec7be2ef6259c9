package containermgr

import (
	"context"
	"fmt"
	"os"

	gocni "github.com/containerd/go-cni"
)

// networkManager attaches containers to the orchestrator's shared bridge
// network via CNI so their DNS-based endpoints resolve from the host and
// from sibling containers.
type networkManager struct {
	cni       gocni.CNI
	available bool
}

const (
	defaultCNIConfDir = "/etc/cni/net.d"
	defaultCNIBinDir  = "/opt/cni/bin"
)

// discoverNetwork loads the orchestrator's CNI network configuration. If no
// CNI configuration is present (a bare single-host dev setup) it returns a
// networkManager with available=false; callers then treat every container
// as host-networked, matching the spec's fallback for workers that can't
// reach a shared bridge.
func discoverNetwork(ctx context.Context, confDir string) (*networkManager, error) {
	if confDir == "" {
		confDir = defaultCNIConfDir
	}
	if _, err := os.Stat(confDir); err != nil {
		return &networkManager{available: false}, nil
	}

	netw, err := gocni.New(
		gocni.WithMinNetworkCount(1),
		gocni.WithPluginConfDir(confDir),
		gocni.WithPluginDir([]string{defaultCNIBinDir}),
	)
	if err != nil {
		return nil, fmt.Errorf("containermgr: init cni: %w", err)
	}
	if err := netw.Load(gocni.WithLoNetwork, gocni.WithDefaultConf); err != nil {
		return &networkManager{available: false}, nil
	}
	return &networkManager{cni: netw, available: true}, nil
}

// attach joins the container's network namespace (identified by its task
// pid) to the shared network and returns its assigned IP.
func (n *networkManager) attach(ctx context.Context, containerID string, pid int) (string, error) {
	if !n.available {
		return "", fmt.Errorf("containermgr: no shared network available")
	}
	netnsPath := fmt.Sprintf("/proc/%d/ns/net", pid)
	result, err := n.cni.Setup(ctx, containerID, netnsPath)
	if err != nil {
		return "", fmt.Errorf("containermgr: cni setup for %s: %w", containerID, err)
	}
	for _, iface := range result.Interfaces {
		for _, cfg := range iface.IPConfigs {
			if cfg.IP != nil {
				return cfg.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("containermgr: cni setup for %s returned no address", containerID)
}

// detach removes the container's network namespace from the shared network.
func (n *networkManager) detach(ctx context.Context, containerID string, pid int) error {
	if !n.available {
		return nil
	}
	netnsPath := fmt.Sprintf("/proc/%d/ns/net", pid)
	if err := n.cni.Remove(ctx, containerID, netnsPath); err != nil {
		return fmt.Errorf("containermgr: cni remove for %s: %w", containerID, err)
	}
	return nil
}

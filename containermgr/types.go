// Package containermgr owns the lifecycle of worker and trigger containers
// and the shared network that lets WorkerClient's DNS-based endpoints
// resolve from the orchestrator. It never raises for "already in desired
// state" operations — every method returns a structured result instead.
package containermgr

import "time"

// Kind distinguishes the two container-backed resource kinds this manager
// installs. Agents and teams are plain files and never reach this package.
type Kind string

const (
	KindMCP     Kind = "mcp"
	KindTrigger Kind = "trigger"
)

// Status is the observed state of a managed container.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Spec describes what to install: an image to pull or a build context to
// build, plus the environment and networking the container needs.
type Spec struct {
	Kind Kind
	Name string
	// Image is a pullable reference. Ignored if BuildContext is set.
	Image string
	// BuildContext, if non-empty, is a directory containing a Dockerfile to
	// build and tag as Name + ":local" before starting.
	BuildContext string
	Env          map[string]string
	// HostNetwork requests host networking (raw sockets, network scans).
	// It is set from the install request; package metadata carries no
	// host-network field.
	HostNetwork bool
	// Port is the container's listening port, used to build its endpoint.
	Port int
}

// ContainerHandle identifies an installed, running (or stopped) container.
type ContainerHandle struct {
	ContainerID string
	Name        string
	Kind        Kind
	Endpoint    string
	Status      Status
}

// InstalledResource is one row of the on-disk container index
// (installed-mcps.json / installed-triggers.json).
type InstalledResource struct {
	Kind         Kind
	Name         string
	Version      string
	ContainerID  string
	EnvOverrides map[string]string
	InstalledAt  time.Time
}

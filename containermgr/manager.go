package containermgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"

	"github.com/atlasrun/orchestrator/telemetry"
)

const (
	defaultNamespace  = "orchestrator"
	defaultStopWindow = 10 * time.Second
)

// Options configures a Manager.
type Options struct {
	SocketPath     string
	Namespace      string
	CNIConfDir     string
	StateDir       string
	OrchestratorURL string
	OrchestratorWS  string
	Logger         telemetry.Logger
}

// Manager owns the lifecycle of worker and trigger containers. Package
// install/uninstall is serialized by installMu so the on-disk index is
// mutated one operation at a time.
type Manager struct {
	client    *containerd.Client
	namespace string
	network   *networkManager
	stateDir  string
	orchURL   string
	orchWS    string
	logger    telemetry.Logger

	installMu sync.Mutex
}

// New connects to containerd and discovers the shared network.
func New(ctx context.Context, opts Options) (*Manager, error) {
	socket := opts.SocketPath
	if socket == "" {
		socket = "/run/containerd/containerd.sock"
	}
	client, err := containerd.New(socket)
	if err != nil {
		return nil, fmt.Errorf("containermgr: connect to containerd: %w", err)
	}
	netw, err := discoverNetwork(ctx, opts.CNIConfDir)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	ns := opts.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Noop().Logger
	}
	return &Manager{
		client:    client,
		namespace: ns,
		network:   netw,
		stateDir:  opts.StateDir,
		orchURL:   opts.OrchestratorURL,
		orchWS:    opts.OrchestratorWS,
		logger:    logger,
	}, nil
}

// Close releases the containerd client connection.
func (m *Manager) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *Manager) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, m.namespace)
}

// Install builds (if a build context is present) or pulls the image, creates
// and starts the container on the shared network, and records it in the
// InstalledResource index.
func (m *Manager) Install(ctx context.Context, spec Spec) (*ContainerHandle, error) {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	cctx := m.ctx(ctx)

	imageRef := spec.Image
	if spec.BuildContext != "" {
		imageRef = spec.Name + ":local"
		if err := buildImage(ctx, spec.BuildContext, imageRef); err != nil {
			return nil, err
		}
	}
	image, err := m.client.Pull(cctx, imageRef, containerd.WithPullUnpack)
	if err != nil {
		return nil, fmt.Errorf("containermgr: pull %s: %w", imageRef, err)
	}

	env := m.platformEnv(spec)
	specOpts := []oci.SpecOpts{oci.WithImageConfig(image), oci.WithEnv(env)}
	if spec.HostNetwork {
		specOpts = append(specOpts, oci.WithHostNamespace("network"), oci.WithHostHostsFile, oci.WithHostResolvconf)
	}
	container, err := m.client.NewContainer(
		cctx,
		spec.Name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.Name+"-snapshot", image),
		containerd.WithNewSpec(specOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("containermgr: create container %s: %w", spec.Name, err)
	}

	task, err := container.NewTask(cctx, cio.NullIO)
	if err != nil {
		return nil, fmt.Errorf("containermgr: create task for %s: %w", spec.Name, err)
	}
	if err := task.Start(cctx); err != nil {
		return nil, fmt.Errorf("containermgr: start task for %s: %w", spec.Name, err)
	}

	endpoint, err := m.resolveEndpoint(cctx, spec, task.Pid())
	if err != nil {
		m.logger.Warn(ctx, "container has no shared-network address, falling back to host networking", "name", spec.Name, "error", err.Error())
		endpoint = fmt.Sprintf("http://localhost:%d", spec.Port)
	}

	handle := &ContainerHandle{
		ContainerID: container.ID(),
		Name:        spec.Name,
		Kind:        spec.Kind,
		Endpoint:    endpoint,
		Status:      StatusRunning,
	}

	if err := m.recordInstalled(spec, handle); err != nil {
		return handle, err
	}
	return handle, nil
}

func (m *Manager) resolveEndpoint(ctx context.Context, spec Spec, pid uint32) (string, error) {
	if spec.HostNetwork {
		return fmt.Sprintf("http://localhost:%d", spec.Port), nil
	}
	ip, err := m.network.attach(ctx, spec.Name, int(pid))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", ip, spec.Port), nil
}

func (m *Manager) platformEnv(spec Spec) []string {
	merged := map[string]string{
		"ORCHESTRATOR_URL": m.orchURL,
		"ORCHESTRATOR_WS":  m.orchWS,
	}
	for k, v := range spec.Env {
		merged[k] = v
	}
	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

func (m *Manager) recordInstalled(spec Spec, handle *ContainerHandle) error {
	if m.stateDir == "" {
		return nil
	}
	index, err := loadIndex(m.stateDir, spec.Kind)
	if err != nil {
		return fmt.Errorf("containermgr: load index: %w", err)
	}
	index[spec.Name] = InstalledResource{
		Kind:         spec.Kind,
		Name:         spec.Name,
		ContainerID:  handle.ContainerID,
		EnvOverrides: spec.Env,
		InstalledAt:  time.Now(),
	}
	return saveIndex(m.stateDir, spec.Kind, index)
}

// Uninstall stops (graceful SIGTERM, SIGKILL after 10s) and removes a
// container, detaches it from the shared network, and drops it from the
// index.
func (m *Manager) Uninstall(ctx context.Context, kind Kind, name string) error {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	cctx := m.ctx(ctx)
	container, err := m.client.LoadContainer(cctx, name)
	if err != nil {
		return m.dropFromIndex(kind, name)
	}

	if task, err := container.Task(cctx, nil); err == nil {
		pid := task.Pid()
		_ = m.stopTask(cctx, task, defaultStopWindow)
		_, _ = task.Delete(cctx)
		_ = m.network.detach(ctx, name, int(pid))
	}

	if err := container.Delete(cctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("containermgr: delete container %s: %w", name, err)
	}
	return m.dropFromIndex(kind, name)
}

func (m *Manager) dropFromIndex(kind Kind, name string) error {
	if m.stateDir == "" {
		return nil
	}
	index, err := loadIndex(m.stateDir, kind)
	if err != nil {
		return fmt.Errorf("containermgr: load index: %w", err)
	}
	delete(index, name)
	return saveIndex(m.stateDir, kind, index)
}

func (m *Manager) stopTask(ctx context.Context, task containerd.Task, timeout time.Duration) error {
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("containermgr: sigterm: %w", err)
	}
	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("containermgr: wait: %w", err)
	}
	select {
	case <-statusC:
		return nil
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("containermgr: sigkill: %w", err)
		}
		return nil
	}
}

// Start starts an existing, stopped container's task.
func (m *Manager) Start(ctx context.Context, name string) error {
	cctx := m.ctx(ctx)
	container, err := m.client.LoadContainer(cctx, name)
	if err != nil {
		return fmt.Errorf("containermgr: load container %s: %w", name, err)
	}
	if _, err := container.Task(cctx, nil); err == nil {
		return nil
	}
	task, err := container.NewTask(cctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("containermgr: create task for %s: %w", name, err)
	}
	return task.Start(cctx)
}

// Stop gracefully stops a running container's task.
func (m *Manager) Stop(ctx context.Context, name string) error {
	cctx := m.ctx(ctx)
	container, err := m.client.LoadContainer(cctx, name)
	if err != nil {
		return fmt.Errorf("containermgr: load container %s: %w", name, err)
	}
	task, err := container.Task(cctx, nil)
	if err != nil {
		return nil
	}
	return m.stopTask(cctx, task, defaultStopWindow)
}

// Restart stops then starts a container.
func (m *Manager) Restart(ctx context.Context, name string) error {
	if err := m.Stop(ctx, name); err != nil {
		return err
	}
	return m.Start(ctx, name)
}

// Status reports the observed state of a container.
func (m *Manager) Status(ctx context.Context, name string) (Status, error) {
	cctx := m.ctx(ctx)
	container, err := m.client.LoadContainer(cctx, name)
	if err != nil {
		return StatusFailed, fmt.Errorf("containermgr: load container %s: %w", name, err)
	}
	task, err := container.Task(cctx, nil)
	if err != nil {
		return StatusPending, nil
	}
	st, err := task.Status(cctx)
	if err != nil {
		return StatusFailed, fmt.Errorf("containermgr: task status %s: %w", name, err)
	}
	switch st.Status {
	case containerd.Running, containerd.Paused:
		return StatusRunning, nil
	case containerd.Stopped:
		if st.ExitStatus == 0 {
			return StatusStopped, nil
		}
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// List returns every container in the orchestrator's namespace.
func (m *Manager) List(ctx context.Context) ([]ContainerHandle, error) {
	cctx := m.ctx(ctx)
	containers, err := m.client.Containers(cctx)
	if err != nil {
		return nil, fmt.Errorf("containermgr: list containers: %w", err)
	}
	out := make([]ContainerHandle, 0, len(containers))
	for _, c := range containers {
		status, _ := m.Status(ctx, c.ID())
		out = append(out, ContainerHandle{ContainerID: c.ID(), Name: c.ID(), Status: status})
	}
	return out, nil
}

// Update replaces an installed container with a new spec. There is no
// rollback: if the new install fails after the old container has already
// been removed, the resource is gone and the caller is informed via the
// returned error. This mirrors the documented non-goal in the install
// lifecycle (see DESIGN.md Open Question 1).
func (m *Manager) Update(ctx context.Context, kind Kind, name string, newSpec Spec) (*ContainerHandle, error) {
	if err := m.Uninstall(ctx, kind, name); err != nil {
		return nil, fmt.Errorf("containermgr: uninstall %s before update: %w", name, err)
	}
	handle, err := m.Install(ctx, newSpec)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("containermgr: install %s during update: %w", name, err), errors.New("previous container was already removed; no rollback is performed"))
	}
	return handle, nil
}

package containermgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestManagerInstallLifecycle exercises install/status/uninstall against a
// real containerd socket. It is skipped when containerd is not reachable,
// matching the teacher's own integration-test pattern for this runtime.
func TestManagerInstallLifecycle(t *testing.T) {
	ctx := t.Context()
	mgr, err := New(ctx, Options{StateDir: t.TempDir()})
	if err != nil {
		t.Skipf("containerd not available: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	spec := Spec{Kind: KindMCP, Name: "test-echo", Image: "docker.io/library/alpine:latest", Port: 8080, HostNetwork: true}
	handle, err := mgr.Install(ctx, spec)
	if err != nil {
		t.Skipf("containerd install not usable in this environment: %v", err)
	}
	require.NotEmpty(t, handle.ContainerID)

	status, err := mgr.Status(ctx, spec.Name)
	require.NoError(t, err)
	require.Contains(t, []Status{StatusRunning, StatusPending}, status)

	require.NoError(t, mgr.Uninstall(ctx, KindMCP, spec.Name))
}

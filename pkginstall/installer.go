package pkginstall

import (
	"context"
	"crypto/md5" //nolint:gosec // required by the catalog's metadata format, not used for security
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/atlasrun/orchestrator/containermgr"
	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/telemetry"
)

// ContainerInstaller is the subset of containermgr.Manager the installer
// depends on for mcp/trigger kinds.
type ContainerInstaller interface {
	Install(ctx context.Context, spec containermgr.Spec) (*containermgr.ContainerHandle, error)
}

// InstalledResource records one installed package on disk.
type InstalledResource struct {
	Kind         Kind
	Name         string
	Version      string
	ContainerID  string // empty for kind agent/team
	EnvOverrides map[string]string
	InstalledAt  time.Time
}

// Options configures an Installer.
type Options struct {
	Catalog    *CatalogClient
	Keyring    *Keyring
	Containers ContainerInstaller
	// FSRoot is the local filesystem root packages are persisted under
	// (registry/{kind}/{name}/{version}/...).
	FSRoot string
	Logger telemetry.Logger
}

// Installer verifies and installs signed packages. It is serialized: only
// one install/uninstall runs at a time, matching the spec's single-lock
// InstalledResource index contract.
type Installer struct {
	catalog    *CatalogClient
	keyring    *Keyring
	containers ContainerInstaller
	fsRoot     string
	logger     telemetry.Logger

	mu sync.Mutex
}

// New builds an Installer.
func New(opts Options) *Installer {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Noop().Logger
	}
	return &Installer{
		catalog:    opts.Catalog,
		keyring:    opts.Keyring,
		containers: opts.Containers,
		fsRoot:     opts.FSRoot,
		logger:     logger,
	}
}

// InstallSpec carries the user-supplied parameters for a trigger install,
// where exactly one of WorkflowID/TeamID must be set.
type InstallSpec struct {
	WorkflowID  string
	TeamID      string
	HostNetwork bool
	Port        int
}

// Install runs the bit-exact install algorithm: fetch, trust check, verify
// signature, verify checksum, recurse into team dependencies, persist to
// disk, and (for mcp/trigger) invoke ContainerManager.Install.
func (inst *Installer) Install(ctx context.Context, kind Kind, name, version string, spec InstallSpec) (*InstalledResource, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.install(ctx, kind, name, version, spec, map[string]bool{})
}

func (inst *Installer) install(ctx context.Context, kind Kind, name, version string, spec InstallSpec, visiting map[string]bool) (*InstalledResource, error) {
	key := string(kind) + "/" + name + "/" + version
	if visiting[key] {
		return nil, errs.New(errs.KindInvalidArgument, "pkginstall", fmt.Sprintf("cyclic package dependency at %s", key), nil)
	}
	visiting[key] = true

	fetched, err := inst.catalog.Fetch(ctx, kind, name, version)
	if err != nil {
		return nil, err
	}

	publisher, err := inst.keyring.Lookup(fetched.Metadata.PublisherID)
	if err != nil {
		return nil, err
	}

	if err := verifyDetachedSignature(publisher.Entity, fetched.Payload, fetched.Signature); err != nil {
		return nil, errs.Wrap(errs.KindInvalidSignature, "pkginstall", err)
	}

	if err := verifyChecksum(fetched.Payload, fetched.Metadata); err != nil {
		return nil, err
	}

	if kind == KindTeam {
		for _, dep := range fetched.Metadata.Dependencies {
			if _, err := inst.install(ctx, dep.Kind, dep.Name, dep.Version, InstallSpec{}, visiting); err != nil {
				return nil, fmt.Errorf("pkginstall: install dependency %s/%s@%s: %w", dep.Kind, dep.Name, dep.Version, err)
			}
		}
	}

	if err := inst.persist(kind, name, version, fetched); err != nil {
		return nil, err
	}

	resource := &InstalledResource{Kind: kind, Name: name, Version: version, InstalledAt: time.Now()}

	if kind == KindMCP || kind == KindTrigger {
		env := triggerEnv(spec)
		cmKind := containermgr.KindMCP
		if kind == KindTrigger {
			cmKind = containermgr.KindTrigger
		}
		handle, err := inst.containers.Install(ctx, containermgr.Spec{
			Kind:        cmKind,
			Name:        name,
			Image:       name + ":" + version,
			Env:         env,
			HostNetwork: spec.HostNetwork,
			Port:        spec.Port,
		})
		if err != nil {
			return nil, fmt.Errorf("pkginstall: start container for %s: %w", name, err)
		}
		resource.ContainerID = handle.ContainerID
		resource.EnvOverrides = env
	}

	return resource, nil
}

func triggerEnv(spec InstallSpec) map[string]string {
	env := map[string]string{}
	if spec.WorkflowID != "" {
		env["WORKFLOW_ID"] = spec.WorkflowID
	}
	if spec.TeamID != "" {
		env["TEAM_ID"] = spec.TeamID
	}
	return env
}

func (inst *Installer) persist(kind Kind, name, version string, fetched *Fetched) error {
	dir := filepath.Join(inst.fsRoot, string(kind), name, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pkginstall: create package dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, kind.payloadFilename()), fetched.Payload, 0o644); err != nil {
		return fmt.Errorf("pkginstall: write payload: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, kind.payloadFilename()+".asc"), fetched.Signature, 0o644); err != nil {
		return fmt.Errorf("pkginstall: write signature: %w", err)
	}
	metadataJSON, err := json.Marshal(fetched.Metadata)
	if err != nil {
		return fmt.Errorf("pkginstall: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), metadataJSON, 0o644); err != nil {
		return fmt.Errorf("pkginstall: write metadata: %w", err)
	}
	return nil
}

func verifyDetachedSignature(signer *openpgp.Entity, payload, signature []byte) error {
	keyring := openpgp.EntityList{signer}
	body, err := armorDecode(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if _, err := openpgp.CheckDetachedSignature(keyring, bytesReader(payload), body, nil); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func verifyChecksum(payload []byte, meta Metadata) error {
	sum := sha256.Sum256(payload)
	got := hex.EncodeToString(sum[:])
	if got != meta.SHA256 {
		return errs.New(errs.KindChecksumMismatch, "pkginstall", fmt.Sprintf("sha256 mismatch: expected %s, got %s", meta.SHA256, got), nil)
	}
	if meta.MD5 != "" {
		sum := md5.Sum(payload) //nolint:gosec // legacy metadata field, not a security check
		if got := hex.EncodeToString(sum[:]); got != meta.MD5 {
			return errs.New(errs.KindChecksumMismatch, "pkginstall", fmt.Sprintf("md5 mismatch: expected %s, got %s", meta.MD5, got), nil)
		}
	}
	return nil
}

// Package pkginstall verifies and installs cryptographically signed
// packages (agents, workers, teams, triggers) fetched from a remote
// catalog. It is the only path by which resources become available; there
// is no "sideload" code path in the core.
package pkginstall

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/atlasrun/orchestrator/errs"
)

// Publisher is a keypair-owning identity trusted to sign packages.
type Publisher struct {
	ID      string
	Entity  *openpgp.Entity
	Trusted bool
}

// Keyring holds the local trusted publisher keys, loaded from
// registry/publishers/{id}/pubkey.asc.
type Keyring struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
	root       string
}

// NewKeyring loads every publisher key found under root
// (registry/publishers/{id}/pubkey.asc).
func NewKeyring(root string) (*Keyring, error) {
	k := &Keyring{publishers: make(map[string]Publisher), root: root}
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return k, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pkginstall: read publisher keyring dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := k.loadOne(e.Name()); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (k *Keyring) loadOne(publisherID string) error {
	path := filepath.Join(k.root, publisherID, "pubkey.asc")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pkginstall: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	entityList, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil || len(entityList) == 0 {
		return fmt.Errorf("pkginstall: parse publisher key %s: %w", publisherID, err)
	}
	k.mu.Lock()
	k.publishers[publisherID] = Publisher{ID: publisherID, Entity: entityList[0], Trusted: true}
	k.mu.Unlock()
	return nil
}

// Lookup returns the trusted publisher record, or fails untrusted_publisher
// with actionable detail when the key is absent from the local keyring.
func (k *Keyring) Lookup(publisherID string) (Publisher, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	p, ok := k.publishers[publisherID]
	if !ok || !p.Trusted {
		return Publisher{}, errs.New(errs.KindUntrustedPublisher, "pkginstall",
			fmt.Sprintf("publisher %q has no trusted key in the local keyring; install its public key at registry/publishers/%s/pubkey.asc", publisherID, publisherID), nil)
	}
	return p, nil
}

// Trust registers a publisher's key, persisting it under the keyring root
// so subsequent Lookups succeed.
func (k *Keyring) Trust(publisherID string, armoredKey []byte) error {
	dir := filepath.Join(k.root, publisherID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pkginstall: create publisher dir: %w", err)
	}
	path := filepath.Join(dir, "pubkey.asc")
	if err := os.WriteFile(path, armoredKey, 0o644); err != nil {
		return fmt.Errorf("pkginstall: write publisher key: %w", err)
	}
	return k.loadOne(publisherID)
}

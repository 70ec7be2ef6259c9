package pkginstall_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/containermgr"
	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/pkginstall"
)

type fakeContainers struct {
	calls []containermgr.Spec
}

func (f *fakeContainers) Install(_ context.Context, spec containermgr.Spec) (*containermgr.ContainerHandle, error) {
	f.calls = append(f.calls, spec)
	return &containermgr.ContainerHandle{ContainerID: "c-" + spec.Name}, nil
}

func signPayload(t *testing.T, entity *openpgp.Entity, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, "PGP SIGNATURE", nil)
	require.NoError(t, err)
	require.NoError(t, openpgp.DetachSign(w, entity, bytes.NewReader(payload), nil))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func armoredPublicKey(t *testing.T, entity *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T, payload, signature []byte, publisherID string) *httptest.Server {
	t.Helper()
	sum := sha256.Sum256(payload)
	meta := map[string]any{
		"publisher_id": publisherID,
		"sha256":       hex.EncodeToString(sum[:]),
	}
	metaJSON, err := json.Marshal(meta)
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case filepath.Base(r.URL.Path) == "mcp.json":
			_, _ = w.Write(payload)
		case filepath.Base(r.URL.Path) == "mcp.json.asc":
			_, _ = w.Write(signature)
		case filepath.Base(r.URL.Path) == "metadata.json":
			_, _ = w.Write(metaJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestInstallSucceedsWithTrustedSignature(t *testing.T) {
	entity, err := openpgp.NewEntity("publisher-a", "", "publisher-a@example.com", nil)
	require.NoError(t, err)
	payload := []byte(`{"name":"calc"}`)
	signature := signPayload(t, entity, payload)

	srv := newTestServer(t, payload, signature, "publisher-a")
	defer srv.Close()

	keyringDir := t.TempDir()
	fsRoot := t.TempDir()
	keyring, err := pkginstall.NewKeyring(keyringDir)
	require.NoError(t, err)
	require.NoError(t, keyring.Trust("publisher-a", armoredPublicKey(t, entity)))

	fc := &fakeContainers{}
	inst := pkginstall.New(pkginstall.Options{
		Catalog:    pkginstall.NewCatalogClient(srv.URL, nil),
		Keyring:    keyring,
		Containers: fc,
		FSRoot:     fsRoot,
	})

	resource, err := inst.Install(t.Context(), pkginstall.KindMCP, "calc", "1.0.0", pkginstall.InstallSpec{Port: 8080})
	require.NoError(t, err)
	assert.Equal(t, "c-calc", resource.ContainerID)
	require.Len(t, fc.calls, 1)

	pkgDir := filepath.Join(fsRoot, "mcp", "calc", "1.0.0")
	assert.FileExists(t, filepath.Join(pkgDir, "mcp.json"))
	assert.FileExists(t, filepath.Join(pkgDir, "mcp.json.asc"))
	assert.FileExists(t, filepath.Join(pkgDir, "metadata.json"))
}

func TestInstallFailsUntrustedPublisher(t *testing.T) {
	entity, err := openpgp.NewEntity("publisher-a", "", "publisher-a@example.com", nil)
	require.NoError(t, err)
	payload := []byte(`{"name":"calc"}`)
	signature := signPayload(t, entity, payload)

	srv := newTestServer(t, payload, signature, "publisher-a")
	defer srv.Close()

	keyring, err := pkginstall.NewKeyring(t.TempDir())
	require.NoError(t, err)

	inst := pkginstall.New(pkginstall.Options{
		Catalog:    pkginstall.NewCatalogClient(srv.URL, nil),
		Keyring:    keyring,
		Containers: &fakeContainers{},
		FSRoot:     t.TempDir(),
	})

	_, err = inst.Install(t.Context(), pkginstall.KindMCP, "calc", "1.0.0", pkginstall.InstallSpec{})
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUntrustedPublisher, e.Kind())
}

func TestInstallFailsBadSignature(t *testing.T) {
	entity, err := openpgp.NewEntity("publisher-a", "", "publisher-a@example.com", nil)
	require.NoError(t, err)
	other, err := openpgp.NewEntity("publisher-b", "", "publisher-b@example.com", nil)
	require.NoError(t, err)

	payload := []byte(`{"name":"calc"}`)
	wrongSignature := signPayload(t, other, payload) // signed by a different key

	srv := newTestServer(t, payload, wrongSignature, "publisher-a")
	defer srv.Close()

	keyring, err := pkginstall.NewKeyring(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, keyring.Trust("publisher-a", armoredPublicKey(t, entity)))

	inst := pkginstall.New(pkginstall.Options{
		Catalog:    pkginstall.NewCatalogClient(srv.URL, nil),
		Keyring:    keyring,
		Containers: &fakeContainers{},
		FSRoot:     t.TempDir(),
	})

	_, err = inst.Install(t.Context(), pkginstall.KindMCP, "calc", "1.0.0", pkginstall.InstallSpec{})
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidSignature, e.Kind())
}

func TestInstallFailsChecksumMismatch(t *testing.T) {
	entity, err := openpgp.NewEntity("publisher-a", "", "publisher-a@example.com", nil)
	require.NoError(t, err)
	payload := []byte(`{"name":"calc"}`)
	signature := signPayload(t, entity, payload)

	sum := sha256.Sum256([]byte("different content"))
	meta := map[string]any{"publisher_id": "publisher-a", "sha256": hex.EncodeToString(sum[:])}
	metaJSON, err := json.Marshal(meta)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Base(r.URL.Path) {
		case "mcp.json":
			_, _ = w.Write(payload)
		case "mcp.json.asc":
			_, _ = w.Write(signature)
		case "metadata.json":
			_, _ = w.Write(metaJSON)
		}
	}))
	defer srv.Close()

	keyring, err := pkginstall.NewKeyring(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, keyring.Trust("publisher-a", armoredPublicKey(t, entity)))

	inst := pkginstall.New(pkginstall.Options{
		Catalog:    pkginstall.NewCatalogClient(srv.URL, nil),
		Keyring:    keyring,
		Containers: &fakeContainers{},
		FSRoot:     t.TempDir(),
	})

	_, err = inst.Install(t.Context(), pkginstall.KindMCP, "calc", "1.0.0", pkginstall.InstallSpec{})
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindChecksumMismatch, e.Kind())
}

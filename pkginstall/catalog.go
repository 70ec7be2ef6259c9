package pkginstall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atlasrun/orchestrator/errs"
)

// Kind is the resource kind a package bundles.
type Kind string

const (
	KindAgent   Kind = "agent"
	KindMCP     Kind = "mcp"
	KindTeam    Kind = "team"
	KindTrigger Kind = "trigger"
)

func (k Kind) payloadFilename() string {
	return string(k) + ".json"
}

// Dependency is one declared agent/mcp dependency of a team package.
type Dependency struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Metadata is the third file in every package's three-file layout.
type Metadata struct {
	PublisherID  string       `json:"publisher_id"`
	SHA256       string       `json:"sha256"`
	MD5          string       `json:"md5"`
	PublishedAt  time.Time    `json:"publish_time"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Fetched bundles the three files the catalog returns for one package.
type Fetched struct {
	Payload   []byte
	Signature []byte
	Metadata  Metadata
}

// CatalogClient fetches signed packages from the remote catalog. A package
// lives at {kind}/{name}/{version}/ containing the payload, its detached
// signature, and its metadata.
type CatalogClient struct {
	baseURL string
	http    *http.Client
}

// NewCatalogClient builds a client against the configured catalog base URL.
func NewCatalogClient(baseURL string, httpClient *http.Client) *CatalogClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &CatalogClient{baseURL: baseURL, http: httpClient}
}

// Fetch retrieves the payload, detached signature, and metadata for one
// package version.
func (c *CatalogClient) Fetch(ctx context.Context, kind Kind, name, version string) (*Fetched, error) {
	base := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, kind, name, version)
	payload, err := c.get(ctx, base+"/"+kind.payloadFilename())
	if err != nil {
		return nil, err
	}
	signature, err := c.get(ctx, base+"/"+kind.payloadFilename()+".asc")
	if err != nil {
		return nil, err
	}
	metaRaw, err := c.get(ctx, base+"/metadata.json")
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "pkginstall", fmt.Errorf("decode metadata.json: %w", err))
	}
	return &Fetched{Payload: payload, Signature: signature, Metadata: meta}, nil
}

func (c *CatalogClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "pkginstall", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "pkginstall", err)
	}
	if resp.StatusCode >= 400 {
		return nil, errs.New(errs.KindNotFound, "pkginstall", fmt.Sprintf("catalog %s status %d", url, resp.StatusCode), nil)
	}
	return body, nil
}

// Catalog returns the combined, signed catalog view (GET
// /registries/catalog). The implementation is a thin passthrough: the
// catalog service itself is the authority on the signed listing.
func (c *CatalogClient) Catalog(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, c.baseURL+"/catalog")
}

package httpapi

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/pkginstall"
)

// packageIDPattern splits a {package_id} path segment of the form
// "name-version" (e.g. "foo-1.0.0") into its name and semver components.
var packageIDPattern = regexp.MustCompile(`^(.+)-(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?)$`)

func splitPackageID(id string) (name, version string, ok bool) {
	m := packageIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

type installRequest struct {
	WorkflowID  string `json:"workflow_id,omitempty"`
	TeamID      string `json:"team_id,omitempty"`
	HostNetwork bool   `json:"host_network,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// handleInstall implements POST /registries/install/{kind}/{package_id}. For
// triggers, exactly one of workflow_id/team_id must be set.
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	kind := pkginstall.Kind(chi.URLParam(r, "kind"))
	packageID := chi.URLParam(r, "packageID")
	name, version, ok := splitPackageID(packageID)
	if !ok {
		writeError(w, errs.New(errs.KindInvalidArgument, "httpapi", "package id "+packageID+" must be name-version", nil))
		return
	}

	var req installRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if kind == pkginstall.KindTrigger {
		if (req.WorkflowID == "") == (req.TeamID == "") {
			writeError(w, errs.New(errs.KindInvalidArgument, "httpapi", "trigger install requires exactly one of workflow_id or team_id", nil))
			return
		}
	}

	resource, err := s.Installer.Install(r.Context(), kind, name, version, pkginstall.InstallSpec{
		WorkflowID:  req.WorkflowID,
		TeamID:      req.TeamID,
		HostNetwork: req.HostNetwork,
		Port:        req.Port,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

// handleCatalog implements GET /registries/catalog: the combined, signed
// catalog view, passed through verbatim from the catalog service.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	raw, err := s.Catalog.Catalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

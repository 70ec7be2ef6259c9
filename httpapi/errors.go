package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/atlasrun/orchestrator/errs"
)

// errorBody is the JSON shape every non-2xx response carries. message is
// already sanitized and truncated by errs.New/errs.Wrap; kind is omitted for
// errors outside the taxonomy (decode failures, missing fields).
type errorBody struct {
	Message string    `json:"message"`
	Kind    errs.Kind `json:"kind,omitempty"`
}

// statusFor maps an error-taxonomy kind to the HTTP status §6/§7 imply for
// it. Kinds not mentioned by the spec's HTTP section fall back to 500.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidWorkflow, errs.KindInvalidArgument, errs.KindUnresolvedReference:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUntrustedPublisher, errs.KindInvalidSignature, errs.KindChecksumMismatch:
		return http.StatusUnprocessableEntity
	case errs.KindWorkerUnreachable, errs.KindLLMTimeout:
		return http.StatusGatewayTimeout
	case errs.KindLLMAuthError:
		return http.StatusUnauthorized
	case errs.KindLLMQuota, errs.KindLLMBlocked:
		return http.StatusTooManyRequests
	case errs.KindWorkerProtocolError, errs.KindToolError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err against the taxonomy (if possible) and writes a
// sanitized JSON error body. It never writes a stack trace or an
// unclassified internal error message verbatim.
func writeError(w http.ResponseWriter, err error) {
	if e, ok := errs.Of(err); ok {
		writeJSON(w, statusFor(e.Kind()), errorBody{Message: e.Message(), Kind: e.Kind()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.New(errs.KindInvalidArgument, "httpapi", err.Error(), err)
	}
	return nil
}

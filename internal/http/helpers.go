package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-content/internal/query"
)

const maxDescriptorBytes = 1 << 20

type errorResponse struct {
	Error      string          `json:"error"`
	Message    string          `json:"message,omitempty"`
	Descriptor json.RawMessage `json:"descriptor,omitempty"`
	Issues     []query.Issue   `json:"issues,omitempty"`
}

func joinPath(base, suffix string) string {
	trimmedBase := strings.TrimSpace(base)
	trimmedSuffix := strings.TrimSpace(suffix)
	if trimmedBase == "" {
		if trimmedSuffix == "" {
			return "/"
		}
		return "/" + strings.Trim(trimmedSuffix, "/")
	}
	baseClean := "/" + strings.Trim(trimmedBase, "/")
	if trimmedSuffix == "" {
		return baseClean
	}
	return baseClean + "/" + strings.Trim(trimmedSuffix, "/")
}

// readDescriptor returns the raw descriptor from `_params` (GET) or the
// request body (POST).
func readDescriptor(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Method != http.MethodPost {
		return []byte(r.URL.Query().Get("_params")), nil
	}
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxDescriptorBytes))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status, payload := mapError(err)
	writeJSON(w, status, payload)
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: "unknown_error"}
	}

	var malformed *query.MalformedQueryError
	if errors.As(err, &malformed) {
		return http.StatusBadRequest, errorResponse{
			Error:      "malformed_query",
			Message:    malformed.Error(),
			Descriptor: malformed.Descriptor,
			Issues:     malformed.Issues,
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, errorResponse{
			Error:   "payload_too_large",
			Message: err.Error(),
		}
	}

	if errors.Is(err, errDocumentNotFound) {
		return http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Message: err.Error(),
		}
	}

	if errors.Is(err, errDocumentIDRequired) {
		return http.StatusBadRequest, errorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: err.Error(),
	}
}

func formatVersion(version uint64) string {
	return strconv.FormatUint(version, 10)
}

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"transitd/internal/apperr"
)

// respondJSON writes v as a JSON body, matching the teacher's
// internal/handler/http.go respondJSON helper.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// errorBody is the uniform error shape from spec.md §7.
type errorBody struct {
	Error     string   `json:"error"`
	Details   string   `json:"details,omitempty"`
	Available []string `json:"available,omitempty"`
}

// respondError maps any error to the apperr taxonomy's HTTP status and the
// uniform {error, details?, available_*?} body, the teacher's
// respondError helper generalized to the closed apperr.Kind taxonomy.
func respondError(w http.ResponseWriter, err error) {
	ae := apperr.As(err)
	body := errorBody{Error: ae.Kind.String(), Available: ae.Available}
	if ae.Message != "" {
		body.Details = ae.Message
	}
	respondJSON(w, ae.Kind.HTTPStatus(), body)
}

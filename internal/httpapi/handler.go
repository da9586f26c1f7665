// Package httpapi implements the external HTTP surface from spec.md §6:
// the uniform provider/endpoint dispatcher route, the providers and docs
// catalogs, and the health check. Routing and middleware composition follow
// the teacher's internal/handler/http.go (PathValue-based routing,
// CORS+gzip middleware chain, respondJSON/respondError helpers).
package httpapi

import (
	"log/slog"
	"net/http"

	"transitd/internal/provider"
)

type Handler struct {
	registry *provider.Registry
	log      *slog.Logger
}

func NewHandler(registry *provider.Registry, log *slog.Logger) *Handler {
	return &Handler{registry: registry, log: log}
}

// Routes builds the full middleware-wrapped mux, ready to pass to
// http.Server.Handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/providers", h.handleProviders)
	mux.HandleFunc("GET /api/docs", h.handleDocs)

	mux.HandleFunc("GET /api/{provider}/{endpoint}", h.handleDispatch)
	mux.HandleFunc("POST /api/{provider}/{endpoint}", h.handleDispatch)
	mux.HandleFunc("GET /api/{provider}/{endpoint}/{p1}", h.handleDispatch)
	mux.HandleFunc("POST /api/{provider}/{endpoint}/{p1}", h.handleDispatch)
	mux.HandleFunc("GET /api/{provider}/{endpoint}/{p1}/{p2}", h.handleDispatch)
	mux.HandleFunc("POST /api/{provider}/{endpoint}/{p1}/{p2}", h.handleDispatch)

	return withCORS(withGzip(mux))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Docs())
}

func (h *Handler) handleDocs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Docs())
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	providerName := r.PathValue("provider")
	endpoint := r.PathValue("endpoint")

	var params []string
	if p1 := r.PathValue("p1"); p1 != "" {
		params = append(params, p1)
	}
	if p2 := r.PathValue("p2"); p2 != "" {
		params = append(params, p2)
	}

	result, err := h.registry.Dispatch(r.Context(), providerName, endpoint, params)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Capacity и проходы
	mux.Handle("GET /api/v1/capacity", chain(http.HandlerFunc(h.GetCapacity)))
	mux.Handle("POST /api/v1/passes", chain(http.HandlerFunc(h.TriggerPass)))

	// Mirrors
	mux.Handle("GET /api/v1/mirrors/{id}", chain(http.HandlerFunc(h.GetMirror)))
	mux.Handle("POST /api/v1/mirrors/{id}/force-sync", chain(http.HandlerFunc(h.ForceSync)))
}

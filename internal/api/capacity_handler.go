package api

import (
	"net/http"
)

// GetCapacity возвращает состояние слотов синхронизации.
// GET /api/v1/capacity
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	inFlight, err := h.capacity.CurrentScheduling(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	maxCapacity := h.capacity.MaxCapacity()
	Success(w, CapacityResponse{
		MaxCapacity: maxCapacity,
		InFlight:    inFlight,
		Available:   max(maxCapacity-inFlight, 0),
	})
}

// TriggerPass запрашивает внеочередной проход планирования.
// Проход выполняется асинхронно; если проход уже идёт, запрос схлопывается.
// POST /api/v1/passes
func (h *Handler) TriggerPass(w http.ResponseWriter, _ *http.Request) {
	h.trigger.Kick()
	Accepted(w, PassResponse{Status: "triggered"})
}

package api

import (
	"net/http"
	"strconv"
)

// GetMirror возвращает зеркало по ID репозитория.
// GET /api/v1/mirrors/{id}
func (h *Handler) GetMirror(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	mirror, err := h.mirrors.GetMirror(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "mirror not found") {
		return
	}

	Success(w, MirrorFromDomain(mirror))
}

// ForceSync делает зеркало due немедленно и запрашивает проход.
// Сбрасывает счётчик ошибок и hard failed. 422, если синхронизация уже идёт.
// POST /api/v1/mirrors/{id}/force-sync
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	mirror, err := h.mirrors.ForceSync(r.Context(), id, h.now())
	if HandleRepoError(w, h.logger, err, "mirror not found") {
		return
	}

	h.logger.Info("mirror force sync requested", "repository_id", id)
	h.trigger.Kick()

	Accepted(w, MirrorFromDomain(mirror))
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, "invalid repository id")
		return 0, false
	}
	return id, true
}

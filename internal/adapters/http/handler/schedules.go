package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
)

// Schedule は GET /masters/{id}/schedule を処理します。
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	rng, err := schedule.ParseRange(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	masterID := chi.URLParam(r, "id")
	days, err := h.schedules.Read(r.Context(), identity, masterID, rng)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, scheduleResponse{MasterID: masterID, Days: toDayResponses(days)})
}

// ReplaceSchedule は PUT /masters/{id}/schedule を処理します。
func (h *Handler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req replaceScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	days, err := req.toDays()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.schedules.Replace(r.Context(), identity, chi.URLParam(r, "id"), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, replaceResponse{UpdatedCount: res.UpdatedCount})
}

// AllSchedules は GET /masters/schedules を処理します。
func (h *Handler) AllSchedules(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	rng, err := schedule.ParseRange(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	all, err := h.schedules.ReadAll(r.Context(), identity, optionalQuery(r, "city"), rng)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMasterScheduleResponses(all))
}

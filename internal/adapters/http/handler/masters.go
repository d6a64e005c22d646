package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"github.com/ogurasousui/masters-service/internal/core/master"
)

// ListMasters は GET /masters を処理します。
func (h *Handler) ListMasters(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	page, err := intQuery(r, "page")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	res, err := h.masters.List(r.Context(), identity, master.ListInput{
		City:   q.Get("city"),
		Status: q.Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respond.Page(w, toMasterResponses(res.Masters), respond.NewPagination(res.Page, res.Limit, res.Total))
}

// GetMaster は GET /masters/{id} を処理します。
func (h *Handler) GetMaster(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	m, err := h.masters.Get(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMasterResponse(m))
}

// MastersByCity は GET /masters/city/{city} を処理します。
func (h *Handler) MastersByCity(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	ms, err := h.masters.ByCity(r.Context(), identity, chi.URLParam(r, "city"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMasterResponses(ms))
}

// Profile は GET /masters/profile を処理します。
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	m, err := h.masters.Profile(r.Context(), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMasterResponse(m))
}

// CreateMaster は POST /masters を処理します。
func (h *Handler) CreateMaster(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req createMasterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	m, err := h.masters.Create(r.Context(), identity, req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toMasterResponse(m))
}

// UpdateMasterStatus は PUT /masters/{id}/status を処理します。
func (h *Handler) UpdateMasterStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	m, err := h.masters.UpdateStatus(r.Context(), identity, chi.URLParam(r, "id"), master.Status(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMasterResponse(m))
}

// DeleteMaster は DELETE /masters/{id} を処理します。
func (h *Handler) DeleteMaster(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.masters.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "master deleted")
}

// OrderStats は GET /masters/{id}/orders を処理します。
func (h *Handler) OrderStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	from, err := dateQuery(r, "startDate")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := dateQuery(r, "endDate")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stats, err := h.masters.OrderStats(r.Context(), identity, chi.URLParam(r, "id"), master.StatsRange{From: from, To: to})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toStatsResponse(stats))
}

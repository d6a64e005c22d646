package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/scope"
)

// HandoverSummary は GET /master-handover/summary を処理します。
func (h *Handler) HandoverSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	summary, err := h.handovers.Summarize(r.Context(), identity, optionalQuery(r, "city"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toSummaryResponse(summary))
}

// HandoverDetails は GET /master-handover/{id} を処理します。
func (h *Handler) HandoverDetails(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	detail, err := h.handovers.Details(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDetailResponse(detail))
}

// ApproveHandover は POST /master-handover/approve/{orderId} を処理します。
func (h *Handler) ApproveHandover(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.handovers.Approve)
}

// RejectHandover は POST /master-handover/reject/{orderId} を処理します。
func (h *Handler) RejectHandover(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.handovers.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, scope.Identity) (*handover.Order, error)) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	order, err := fn(r.Context(), chi.URLParam(r, "orderId"), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toOrderResponse(order))
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/api/httpx"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/middleware"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

type AdminHandler struct {
	Approvals *services.ApprovalService
	Modes     *services.ModeResolver
}

func (h *AdminHandler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	status := models.ApprovalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ApprovalPending
	}
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	out, err := h.Approvals.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type decisionReq struct {
	Notes string `json:"notes"`
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	var req decisionReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	a, err := h.Approvals.Approve(r.Context(), chi.URLParam(r, "id"), u.UserID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	var req decisionReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	a, err := h.Approvals.Reject(r.Context(), chi.URLParam(r, "id"), u.UserID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *AdminHandler) GetPaymentMode(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"mode": string(h.Modes.Resolve(r.Context())),
	})
}

func (h *AdminHandler) SetPaymentMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	if err := h.Modes.Set(r.Context(), models.PaymentMode(req.Mode)); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_mode", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

package handlers

import (
	"net/http"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/api/httpx"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/middleware"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

type WalletHandler struct {
	Wallets *services.WalletService
}

func (h *WalletHandler) Current(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	wallet, err := h.Wallets.Current(r.Context(), u.UserID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wallet)
}

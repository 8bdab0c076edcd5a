package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/api/httpx"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/api/validate"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/middleware"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

type PaymentsHandler struct {
	Deposits    *services.DepositService
	Withdrawals *services.WithdrawalService
	Webhooks    *services.WebhookService
	Wallets     *services.WalletService
}

// writeServiceError maps domain and gateway errors onto API responses without
// leaking aggregator internals.
func writeServiceError(w http.ResponseWriter, err error) {
	var rej *gateway.RejectedError
	var gwe *gateway.GatewayError
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, services.ErrInsufficientBalance):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "insufficient_balance", "insufficient wallet balance", nil)
	case errors.Is(err, services.ErrApprovalNotPending):
		httpx.WriteError(w, http.StatusConflict, "approval_not_pending", "approval was already processed", nil)
	case errors.Is(err, services.ErrTransactionNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
	case errors.As(err, &rej):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "gateway_rejected", rej.Reason, nil)
	case errors.As(err, &gwe):
		httpx.WriteError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway is temporarily unavailable", nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

type depositReq struct {
	Amount        int64  `json:"amount"`
	PaymentSystem string `json:"payment_system"`
}

func (h *PaymentsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	var req depositReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	var errs validate.Errs
	if e := validate.MinInt("amount", req.Amount, 1); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.Required("payment_system", req.PaymentSystem); e != nil {
		errs = append(errs, *e)
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid request", errs)
		return
	}

	res, err := h.Deposits.Initiate(r.Context(), u.UserID, req.Amount, req.PaymentSystem)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"transaction_id": res.Transaction.ID,
		"order_id":       res.Transaction.GatewayOrderID,
		"payment_url":    res.PaymentURL,
	})
}

type withdrawReq struct {
	Amount        int64  `json:"amount"`
	PaymentSystem string `json:"payment_system"`
	AccountNumber string `json:"account_number"`
}

func (h *PaymentsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	var req withdrawReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	var errs validate.Errs
	if e := validate.MinInt("amount", req.Amount, 1); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.Required("payment_system", req.PaymentSystem); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.Required("account_number", req.AccountNumber); e != nil {
		errs = append(errs, *e)
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid request", errs)
		return
	}

	res, err := h.Withdrawals.Initiate(r.Context(), u.UserID, req.Amount, req.PaymentSystem, req.AccountNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{
		"transaction_id":    res.Transaction.ID,
		"status":            res.Transaction.Status,
		"requires_approval": res.RequiresApproval,
	})
}

// Webhook is the aggregator's server-to-server notification endpoint. The
// batch response shape is part of the gateway contract: OK even when
// individual entries no-op, 400 only on structural or signature failure.
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var batch gateway.WebhookBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil || len(batch.Transactions) == 0 {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "INVALID_PAYLOAD"})
		return
	}
	if err := h.Webhooks.ProcessBatch(r.Context(), batch); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "INVALID_SIGNATURE"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Callback is the unsigned browser-redirect endpoint; advisory only.
func (h *PaymentsHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	invoice := q.Get("custom_transaction_id")
	orderID := q.Get("order_id")
	status := q.Get("status")

	res, err := h.Webhooks.ProcessCallback(r.Context(), invoice, status, orderID)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, map[string]any{
				"success":   false,
				"order_id":  orderID,
				"status":    "UNKNOWN",
				"message":   "transaction not found",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		writeServiceError(w, err)
		return
	}

	txn := res.Transaction
	if txn.GatewayOrderID != nil {
		orderID = *txn.GatewayOrderID
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   txn.Status != models.TxnFailed,
		"order_id":  orderID,
		"status":    txn.Status,
		"message":   res.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *PaymentsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	txn, err := h.Wallets.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil || txn.UserID != u.UserID {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txn)
}

// RequeryTransaction polls the gateway for a transaction still in flight and
// applies the answer through the webhook state engine.
func (h *PaymentsHandler) RequeryTransaction(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
	txn, err := h.Wallets.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil || txn.UserID != u.UserID {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
		return
	}
	out, err := h.Webhooks.Requery(r.Context(), txn.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *PaymentsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.FromCtx(r.Context())
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
	txns, err := h.Wallets.ListTransactions(r.Context(), u.UserID, limit, offset)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txns)
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/ccsl/internal/domain/settlement"
)

// IdempotencyHeader carries the client's idempotency key for POST /payments.
const IdempotencyHeader = "Idempotency-Key"

const defaultWait = 30 * time.Second

// PaymentHandler handles payment and transaction requests.
type PaymentHandler struct {
	deps    Dependencies
	maxWait time.Duration
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(deps Dependencies, maxWait time.Duration) *PaymentHandler {
	if maxWait <= 0 {
		maxWait = defaultWait
	}
	return &PaymentHandler{deps: deps, maxWait: maxWait}
}

// HandlePayContribution handles POST /contributions/{id}/payments.
func (h *PaymentHandler) HandlePayContribution(w http.ResponseWriter, r *http.Request) {
	const op = "api.pay_contribution"
	var req contributionPaymentRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	handle, err := h.deps.PayContribution(r.Context(), chi.URLParam(r, "id"), req.Wallet)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	h.respond(w, r, op, handle)
}

// HandlePay handles POST /payments. A repeated Idempotency-Key returns the
// transaction created by the first request instead of paying again.
func (h *PaymentHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	const op = "api.pay"
	ctx := r.Context()
	var req paymentRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(ctx, w, op, WrapKind(op, ErrBadRequest, err))
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" {
		if txID, seen := h.deps.SeenAndRecord(ctx, key); seen {
			if txID == "" {
				writeFailure(ctx, w, op, WrapKind(op, ErrConflict, errors.New("request with this key is in flight")))
				return
			}
			tx, err := h.deps.Transaction(ctx, txID)
			if err != nil {
				writeFailure(ctx, w, op, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, tx)
			return
		}
	}

	handle, err := h.deps.Pay(ctx, req.SourceWallet, req.DestinationWallet, req.Amount, req.ContributionID)
	if err != nil {
		if key != "" {
			// Rejected requests leave no transaction, so the key may be retried.
			h.deps.Unrecord(ctx, key)
		}
		writeFailure(ctx, w, op, err)
		return
	}
	if key != "" {
		h.deps.Complete(ctx, key, handle.ID())
	}
	h.respond(w, r, op, handle)
}

// respond writes 202 with the provisional transaction, or with ?wait=true
// blocks up to ?timeout= seconds for the outcome and writes 200.
func (h *PaymentHandler) respond(w http.ResponseWriter, r *http.Request, op string, handle *settlement.Handle) {
	ctx := r.Context()
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		tx, err := h.deps.Transaction(ctx, handle.ID())
		if err != nil {
			writeFailure(ctx, w, op, err)
			return
		}
		writeJSON(w, http.StatusAccepted, tx)
		return
	}

	timeout := h.maxWait
	if secs, err := strconv.Atoi(r.URL.Query().Get("timeout")); err == nil && secs > 0 {
		if d := time.Duration(secs) * time.Second; d < timeout {
			timeout = d
		}
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, werr := handle.Wait(waitCtx)
	tx, err := h.deps.Transaction(ctx, handle.ID())
	if err != nil {
		writeFailure(ctx, w, op, err)
		return
	}
	switch {
	case werr == nil:
		writeJSON(w, http.StatusOK, tx)
	case errors.Is(werr, context.DeadlineExceeded) || errors.Is(werr, context.Canceled):
		writeJSON(w, http.StatusAccepted, tx)
	default:
		writeFailure(ctx, w, op, werr)
	}
}

// HandleListTransactions handles GET /transactions[?contribution_id=].
func (h *PaymentHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Transactions(r.Context(), r.URL.Query().Get("contribution_id")))
}

// HandleGetTransaction handles GET /transactions/{id}.
func (h *PaymentHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_transaction"
	tx, err := h.deps.Transaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

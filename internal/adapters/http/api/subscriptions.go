package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SubscriptionHandler handles recurring payout requests.
type SubscriptionHandler struct {
	deps Dependencies
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(deps Dependencies) *SubscriptionHandler {
	return &SubscriptionHandler{deps: deps}
}

// HandlePut handles PUT /subscriptions/{id}, adding or replacing the
// contributor's subscription.
func (h *SubscriptionHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_subscription"
	var req subscriptionRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := h.deps.Subscribe(r.Context(), chi.URLParam(r, "id"), req.Wallet, req.PeriodDays)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleGet handles GET /subscriptions/{id}.
func (h *SubscriptionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_subscription"
	sub, err := h.deps.Subscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleList handles GET /subscriptions.
func (h *SubscriptionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Subscriptions(r.Context()))
}

// HandleDelete handles DELETE /subscriptions/{id}.
func (h *SubscriptionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_subscription"
	if !h.deps.Unsubscribe(r.Context(), chi.URLParam(r, "id")) {
		writeFailure(r.Context(), w, op, NewKind(op, ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleProcess handles POST /subscriptions/process, paying every due
// subscription immediately.
func (h *SubscriptionHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	const op = "api.process_subscriptions"
	n, err := h.deps.ProcessSubscriptions(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Sent: n})
}

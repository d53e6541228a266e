package api

import (
	"net/http"
)

// ValuationHandler handles fragment evaluation requests.
type ValuationHandler struct {
	deps Dependencies
}

// NewValuationHandler creates a new valuation handler.
func NewValuationHandler(deps Dependencies) *ValuationHandler {
	return &ValuationHandler{deps: deps}
}

// HandleEvaluate handles POST /evaluate. An empty fragment is valid.
func (h *ValuationHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	var req evaluateRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := h.deps.Evaluate(r.Context(), req.Code)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

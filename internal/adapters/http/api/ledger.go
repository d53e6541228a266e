package api

import (
	"net/http"
)

// LedgerHandler serves the payment report and license info.
type LedgerHandler struct {
	deps Dependencies
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(deps Dependencies) *LedgerHandler {
	return &LedgerHandler{deps: deps}
}

// HandleLedger handles GET /ledger.
func (h *LedgerHandler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Ledger(r.Context()))
}

// HandleLicense handles GET /license.
func (h *LedgerHandler) HandleLicense(w http.ResponseWriter, r *http.Request) {
	const op = "api.license"
	info, err := h.deps.LicenseInfo(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

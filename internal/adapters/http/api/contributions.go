package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/ccsl/internal/app"
)

// ContributionHandler handles contribution registry requests.
type ContributionHandler struct {
	deps Dependencies
}

// NewContributionHandler creates a new contribution handler.
func NewContributionHandler(deps Dependencies) *ContributionHandler {
	return &ContributionHandler{deps: deps}
}

// HandleRegister handles POST /contributions.
func (h *ContributionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_contribution"
	var req contributionRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.RegisterContribution(r.Context(), service.ContributionInput{
		Contributor: req.Contributor,
		FileID:      req.FileID,
		LineStart:   req.LineStart,
		LineEnd:     req.LineEnd,
		Code:        req.Code,
	})
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	w.Header().Set("Location", "/contributions/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// HandleList handles GET /contributions.
func (h *ContributionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Contributions(r.Context()))
}

// HandleGet handles GET /contributions/{id}.
func (h *ContributionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_contribution"
	c, err := h.deps.Contribution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleAttachEvaluations handles POST /contributions/{id}/evaluations.
func (h *ContributionHandler) HandleAttachEvaluations(w http.ResponseWriter, r *http.Request) {
	const op = "api.attach_evaluations"
	var req evaluationsRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	evals, err := req.toDomain()
	if err != nil {
		writeFailure(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.AttachEvaluations(r.Context(), chi.URLParam(r, "id"), evals)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

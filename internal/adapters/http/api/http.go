// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	service "github.com/okian/ccsl/internal/app"
	"github.com/okian/ccsl/internal/domain/contribution"
	"github.com/okian/ccsl/internal/domain/dedupe"
	"github.com/okian/ccsl/internal/domain/settlement"
	"github.com/okian/ccsl/internal/domain/subscription"
	"github.com/okian/ccsl/internal/domain/types"
	"github.com/okian/ccsl/internal/domain/valuation"
	"github.com/okian/ccsl/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	dedupe.Deduper

	Evaluate(ctx context.Context, code string) (types.Valuation, error)

	RegisterContribution(ctx context.Context, in service.ContributionInput) (types.Contribution, error)
	AttachEvaluations(ctx context.Context, id string, evals []valuation.Evaluation) (types.Contribution, error)
	Contribution(ctx context.Context, id string) (types.Contribution, error)
	Contributions(ctx context.Context) []types.Contribution

	PayContribution(ctx context.Context, id, destination string) (*settlement.Handle, error)
	Pay(ctx context.Context, source, destination string, amount float64, contributionID string) (*settlement.Handle, error)
	Transaction(ctx context.Context, id string) (types.Transaction, error)
	Transactions(ctx context.Context, contributionID string) []types.Transaction

	Subscribe(ctx context.Context, contributorID, walletAddress string, periodDays int) (types.Subscription, error)
	Subscription(ctx context.Context, contributorID string) (types.Subscription, error)
	Subscriptions(ctx context.Context) []types.Subscription
	Unsubscribe(ctx context.Context, contributorID string) bool
	ProcessSubscriptions(ctx context.Context) (int, error)

	Ledger(ctx context.Context) types.Ledger
	LicenseInfo(ctx context.Context) (types.License, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	valuationHandler    *ValuationHandler
	contributionHandler *ContributionHandler
	paymentHandler      *PaymentHandler
	subscriptionHandler *SubscriptionHandler
	ledgerHandler       *LedgerHandler
}

// NewServer creates a new API server with all handlers. maxWait caps the
// ?wait= parameter of payment endpoints.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxWait time.Duration) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		valuationHandler:    NewValuationHandler(deps),
		contributionHandler: NewContributionHandler(deps),
		paymentHandler:      NewPaymentHandler(deps, maxWait),
		subscriptionHandler: NewSubscriptionHandler(deps),
		ledgerHandler:       NewLedgerHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/evaluate", MetricsMiddleware(s.valuationHandler.HandleEvaluate, "evaluate"))

	r.Route("/contributions", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.contributionHandler.HandleRegister, "contributions"))
		r.Get("/", MetricsMiddleware(s.contributionHandler.HandleList, "contributions"))
		r.Get("/{id}", MetricsMiddleware(s.contributionHandler.HandleGet, "contribution"))
		r.Post("/{id}/evaluations", MetricsMiddleware(s.contributionHandler.HandleAttachEvaluations, "contribution_evaluations"))
		r.Post("/{id}/payments", MetricsMiddleware(s.paymentHandler.HandlePayContribution, "contribution_payments"))
	})

	r.Post("/payments", MetricsMiddleware(s.paymentHandler.HandlePay, "payments"))
	r.Get("/transactions", MetricsMiddleware(s.paymentHandler.HandleListTransactions, "transactions"))
	r.Get("/transactions/{id}", MetricsMiddleware(s.paymentHandler.HandleGetTransaction, "transaction"))

	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.subscriptionHandler.HandleList, "subscriptions"))
		r.Post("/process", MetricsMiddleware(s.subscriptionHandler.HandleProcess, "subscriptions_process"))
		r.Put("/{id}", MetricsMiddleware(s.subscriptionHandler.HandlePut, "subscription"))
		r.Get("/{id}", MetricsMiddleware(s.subscriptionHandler.HandleGet, "subscription"))
		r.Delete("/{id}", MetricsMiddleware(s.subscriptionHandler.HandleDelete, "subscription"))
	})

	r.Get("/ledger", MetricsMiddleware(s.ledgerHandler.HandleLedger, "ledger"))
	r.Get("/license", MetricsMiddleware(s.ledgerHandler.HandleLicense, "license"))
}

// Routes returns a router with every route registered.
func (s *Server) Routes(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain error to its status and error code.
func writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.NamedOrNop("api").Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		err = Wrap(op, err)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, contribution.ErrInvalidArgument),
		errors.Is(err, settlement.ErrInvalidWallet),
		errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, subscription.ErrInvalidArgument),
		errors.Is(err, subscription.ErrInvalidWallet),
		errors.Is(err, valuation.ErrUnknownKind):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, contribution.ErrNotFound),
		errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict),
		errors.Is(err, contribution.ErrOverlapConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure),
		errors.Is(err, settlement.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, settlement.ErrVerificationFailed):
		return http.StatusBadGateway, "verification_failed"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, settlement.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

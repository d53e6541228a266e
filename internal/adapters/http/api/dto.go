package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/ccsl/internal/domain/valuation"
)

// maxBodyBytes caps request bodies; code fragments dominate the size.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// evaluateRequest is the body of POST /evaluate.
type evaluateRequest struct {
	Code string `json:"code" validate:"max=524288"`
}

// contributionRequest is the body of POST /contributions.
type contributionRequest struct {
	Contributor string `json:"contributor" validate:"required,max=256"`
	FileID      string `json:"file_id" validate:"required,max=1024"`
	LineStart   int    `json:"line_start" validate:"gte=1"`
	LineEnd     int    `json:"line_end" validate:"gtefield=LineStart"`
	Code        string `json:"code" validate:"max=524288"`
}

// evaluationRequest is one element of POST /contributions/{id}/evaluations.
type evaluationRequest struct {
	Kind      string  `json:"kind" validate:"required,oneof=impact simplicity cleanness comment creditability novelty"`
	Value     float64 `json:"value" validate:"gte=0,lte=1"`
	Rationale string  `json:"rationale" validate:"max=4096"`
}

type evaluationsRequest struct {
	Evaluations []evaluationRequest `json:"evaluations" validate:"required,min=1,max=6,dive"`
}

func (r evaluationsRequest) toDomain() ([]valuation.Evaluation, error) {
	out := make([]valuation.Evaluation, 0, len(r.Evaluations))
	for _, e := range r.Evaluations {
		k, err := valuation.ParseKind(e.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, valuation.Evaluation{Kind: k, Value: e.Value, Rationale: e.Rationale})
	}
	return out, nil
}

// contributionPaymentRequest is the body of POST /contributions/{id}/payments.
type contributionPaymentRequest struct {
	Wallet string `json:"wallet" validate:"required"`
}

// paymentRequest is the body of POST /payments.
type paymentRequest struct {
	SourceWallet      string  `json:"source_wallet"`
	DestinationWallet string  `json:"destination_wallet" validate:"required"`
	Amount            float64 `json:"amount" validate:"gt=0"`
	ContributionID    string  `json:"contribution_id" validate:"max=256"`
}

// subscriptionRequest is the body of PUT /subscriptions/{id}.
type subscriptionRequest struct {
	Wallet     string `json:"wallet" validate:"required"`
	PeriodDays int    `json:"period_days" validate:"gte=1,lte=3650"`
}

type processResponse struct {
	Sent int `json:"sent"`
}

// decode reads a JSON body into v and validates its tags.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

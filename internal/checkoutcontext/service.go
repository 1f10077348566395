// Package checkoutcontext stores the token-addressed envelopes that carry a
// booking payload or cart from checkout initiation to confirmation.
package checkoutcontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/pagination"
	"github.com/coralreef/resortpay/pkg/security"
)

// Summary is the public view of a context used to pre-fill payment pages.
type Summary struct {
	Name    string                      `json:"name"`
	Email   string                      `json:"email"`
	Amount  decimal.Decimal             `json:"amount"`
	Package string                      `json:"package"`
	Status  enums.CheckoutContextStatus `json:"status"`
}

// Unforwarded is a paid booking context awaiting reconciliation.
type Unforwarded struct {
	Token            string             `json:"token"`
	PaymentID        uuid.UUID          `json:"payment_id"`
	Email            string             `json:"email"`
	ForwardState     enums.ForwardState `json:"forward_state"`
	ForwardError     *string            `json:"forward_error,omitempty"`
	ForwardAttemptAt *time.Time         `json:"forward_attempt_at,omitempty"`
	PaidAt           *time.Time         `json:"paid_at,omitempty"`
}

// Service answers context lookups.
type Service interface {
	Lookup(ctx context.Context, token string) (*Summary, error)
	ListUnforwarded(ctx context.Context, page pagination.Params) ([]Unforwarded, error)
}

type service struct {
	repo Repository
}

// NewService wires the checkout context service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout context repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Lookup(ctx context.Context, token string) (*Summary, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	if !security.TokenLooksValid(token) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout context not found")
	}
	record, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, MapLookupError(err)
	}
	return &Summary{
		Name:    record.Name,
		Email:   record.Email,
		Amount:  record.Amount,
		Package: record.Package,
		Status:  record.Status,
	}, nil
}

func (s *service) ListUnforwarded(ctx context.Context, page pagination.Params) ([]Unforwarded, error) {
	records, err := s.repo.ListUnforwarded(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unforwarded contexts")
	}
	out := make([]Unforwarded, 0, len(records))
	for _, record := range records {
		out = append(out, Unforwarded{
			Token:            record.Token,
			PaymentID:        record.PaymentID,
			Email:            record.Email,
			ForwardState:     record.ForwardState,
			ForwardError:     record.ForwardError,
			ForwardAttemptAt: record.ForwardAttemptAt,
			PaidAt:           record.PaidAt,
		})
	}
	return out, nil
}

// MapLookupError converts repository lookup failures into domain errors.
func MapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "checkout context not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout context")
}

// DecodeCart reads the cart snapshot stored on a cart context.
func DecodeCart(record *models.CheckoutContext) (*models.CartSnapshot, error) {
	if record == nil || len(record.CartItems) == 0 {
		return nil, nil
	}
	var snapshot models.CartSnapshot
	if err := json.Unmarshal(record.CartItems, &snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stored cart")
	}
	return &snapshot, nil
}

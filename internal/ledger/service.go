// Package ledger is the durable record of payments: amount, package, status
// and the processor transaction reference.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/pkg/db/models"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
)

// Service exposes read access to the payment ledger.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]models.Payment, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, MapLookupError(err)
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Payment, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", filter.Status))
	}
	payments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

// MapLookupError converts repository lookup failures into domain errors.
func MapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
}

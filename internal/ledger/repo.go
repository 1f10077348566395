package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/internal/repo"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/pagination"
)

// Repository persists payments. Status changes go through the conditional
// Mark* methods so concurrent callers cannot both apply the same transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transactionRef string, paidAt time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.Payment, error)
}

// ListFilter narrows payment listings. Zero values match everything.
type ListFilter struct {
	Status enums.PaymentStatus
	Email  string
	Page   pagination.Params
}

type repository struct {
	base repo.Base
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.base.DB(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.base.DB(ctx).
		Where("processor_session_id = ?", sessionID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaid moves a pending payment to paid. It reports false when the payment
// was not pending anymore.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, transactionRef string, paidAt time.Time) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":          enums.PaymentStatusPaid,
			"transaction_ref": transactionRef,
			"payment_date":    paidAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed moves a pending payment to failed. The transaction reference
// stays unset.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":     enums.PaymentStatusFailed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkRefunded moves a paid payment to refunded.
func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":     enums.PaymentStatusRefunded,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Payment, error) {
	query := r.base.DB(ctx).Model(&models.Payment{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
		query = query.Where("email = ?", email)
	}

	page := filter.Page.Normalize()
	var payments []models.Payment
	if err := query.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

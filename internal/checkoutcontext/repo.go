package checkoutcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/internal/repo"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/pagination"
)

// Repository persists checkout contexts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.CheckoutContext) error
	FindByToken(ctx context.Context, token string) (*models.CheckoutContext, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.CheckoutContext, error)
	MarkPaid(ctx context.Context, token string, paidAt time.Time) (bool, error)
	SetForwardState(ctx context.Context, token string, state enums.ForwardState, forwardErr *string, at time.Time) error
	ListUnforwarded(ctx context.Context, page pagination.Params) ([]models.CheckoutContext, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a checkout context repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, record *models.CheckoutContext) error {
	return r.base.DB(ctx).Create(record).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.CheckoutContext, error) {
	var record models.CheckoutContext
	if err := r.base.DB(ctx).Where("token = ?", token).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.CheckoutContext, error) {
	var record models.CheckoutContext
	if err := r.base.DB(ctx).Where("payment_id = ?", paymentID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkPaid consumes an init context. Exactly one caller observes true.
func (r *repository) MarkPaid(ctx context.Context, token string, paidAt time.Time) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.CheckoutContext{}).
		Where("token = ? AND status = ?", token, enums.CheckoutContextStatusInit).
		Updates(map[string]any{
			"status":     enums.CheckoutContextStatusPaid,
			"paid_at":    paidAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetForwardState(ctx context.Context, token string, state enums.ForwardState, forwardErr *string, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.CheckoutContext{}).
		Where("token = ?", token).
		Updates(map[string]any{
			"forward_state":      state,
			"forward_error":      forwardErr,
			"forward_attempt_at": at,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// ListUnforwarded returns paid booking contexts whose payload never reached
// the booking system.
func (r *repository) ListUnforwarded(ctx context.Context, page pagination.Params) ([]models.CheckoutContext, error) {
	page = page.Normalize()
	var records []models.CheckoutContext
	if err := r.base.DB(ctx).
		Where("type = ? AND status = ? AND forward_state <> ?",
			enums.CheckoutTypeBooking, enums.CheckoutContextStatusPaid, enums.ForwardStateForwarded).
		Order("paid_at ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

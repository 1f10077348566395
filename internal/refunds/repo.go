package refunds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/internal/repo"
	"github.com/coralreef/resortpay/pkg/db"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/pagination"
)

// OpenRefundIndex is the partial unique index allowing one open refund per
// payment.
const OpenRefundIndex = "refunds_one_open_per_payment"

// ErrOpenRefundExists is returned by Create when the payment already has an
// open refund.
var ErrOpenRefundExists = errors.New("payment already has an open refund")

// Transition describes a conditional status change. Fields holds extra
// columns written together with the status.
type Transition struct {
	From   enums.RefundStatus
	To     enums.RefundStatus
	Fields map[string]any
}

// Repository persists refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	FindByProcessorRef(ctx context.Context, ref string) (*models.Refund, error)
	FindOpenByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Refund, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error)
	List(ctx context.Context, status enums.RefundStatus, page pagination.Params) ([]models.Refund, error)
	Apply(ctx context.Context, id uuid.UUID, transition Transition) (bool, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a refund repository bound to db.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	err := r.base.DB(ctx).Create(refund).Error
	if db.IsUniqueViolation(err, OpenRefundIndex) {
		return ErrOpenRefundExists
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	if err := r.base.DB(ctx).Where("id = ?", id).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) FindByProcessorRef(ctx context.Context, ref string) (*models.Refund, error) {
	var refund models.Refund
	if err := r.base.DB(ctx).Where("processor_ref = ?", ref).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) FindOpenByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	if err := r.base.DB(ctx).
		Where("payment_id = ? AND status IN ?", paymentID, enums.OpenRefundStatuses()).
		First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.base.DB(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *repository) List(ctx context.Context, status enums.RefundStatus, page pagination.Params) ([]models.Refund, error) {
	page = page.Normalize()
	query := r.base.DB(ctx).Model(&models.Refund{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var refunds []models.Refund
	if err := query.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// Apply performs the transition only when the refund is still in From. It
// reports whether this caller won.
func (r *repository) Apply(ctx context.Context, id uuid.UUID, transition Transition) (bool, error) {
	updates := make(map[string]any, len(transition.Fields)+2)
	for k, v := range transition.Fields {
		updates[k] = v
	}
	updates["status"] = transition.To
	updates["updated_at"] = time.Now().UTC()

	res := r.base.DB(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", id, transition.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

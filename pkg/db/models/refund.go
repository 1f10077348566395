package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coralreef/resortpay/pkg/enums"
)

// Refund is one refund request against a payment. PolicyWindowDays keeps the
// window that was applied when the request was accepted.
type Refund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID        uuid.UUID          `gorm:"column:payment_id;type:uuid;not null"`
	RequesterEmail   string             `gorm:"column:requester_email;not null"`
	Amount           decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason           enums.RefundReason `gorm:"column:reason;type:refund_reason;not null"`
	Note             *string            `gorm:"column:note"`
	Status           enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'requested'"`
	PolicyWindowDays int                `gorm:"column:policy_window_days;not null;default:30"`
	ProcessorRef     *string            `gorm:"column:processor_ref"`
	DecidedBy        *string            `gorm:"column:decided_by"`
	DecidedAt        *time.Time         `gorm:"column:decided_at"`
	FailureReason    *string            `gorm:"column:failure_reason"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

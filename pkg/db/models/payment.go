package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coralreef/resortpay/pkg/enums"
)

// Payment is the durable record of one purchase attempt.
type Payment struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerName       string              `gorm:"column:customer_name;not null"`
	Email              string              `gorm:"column:email;not null"`
	Amount             decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency           enums.Currency      `gorm:"column:currency;not null;default:'usd'"`
	Package            string              `gorm:"column:package;not null"`
	Status             enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	TransactionRef     *string             `gorm:"column:transaction_ref"`
	ProcessorSessionID *string             `gorm:"column:processor_session_id;uniqueIndex"`
	PaymentDate        time.Time           `gorm:"column:payment_date;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

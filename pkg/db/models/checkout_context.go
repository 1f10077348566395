package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/coralreef/resortpay/pkg/enums"
)

// CheckoutContext correlates a pending payment with the booking or cart
// payload that produced it. Token is the only public handle.
type CheckoutContext struct {
	Token            string                      `gorm:"column:token;primaryKey"`
	Type             enums.CheckoutType          `gorm:"column:type;type:checkout_type;not null"`
	PaymentID        uuid.UUID                   `gorm:"column:payment_id;type:uuid;not null"`
	Name             string                      `gorm:"column:name;not null"`
	Email            string                      `gorm:"column:email;not null"`
	Amount           decimal.Decimal             `gorm:"column:amount;type:numeric(12,2);not null"`
	Package          string                      `gorm:"column:package;not null"`
	BookingData      datatypes.JSON              `gorm:"column:booking_data;type:jsonb"`
	CartItems        datatypes.JSON              `gorm:"column:cart_items;type:jsonb"`
	Status           enums.CheckoutContextStatus `gorm:"column:status;type:checkout_context_status;not null;default:'init'"`
	ForwardState     enums.ForwardState          `gorm:"column:forward_state;type:forward_state;not null;default:'none'"`
	ForwardError     *string                     `gorm:"column:forward_error"`
	ForwardAttemptAt *time.Time                  `gorm:"column:forward_attempt_at"`
	PaidAt           *time.Time                  `gorm:"column:paid_at"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// CartLineItem is one entry of a cart checkout, stored as JSON on the context.
// UnitPrice is expressed in the cart's source currency.
type CartLineItem struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CartSnapshot is the persisted cart envelope.
type CartSnapshot struct {
	Currency     enums.Currency  `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Items        []CartLineItem  `json:"items"`
}

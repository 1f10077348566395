package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
)

type refundView struct {
	ID               uuid.UUID          `json:"id"`
	PaymentID        uuid.UUID          `json:"payment_id"`
	RequesterEmail   string             `json:"requester_email"`
	Amount           decimal.Decimal    `json:"amount"`
	Reason           enums.RefundReason `json:"reason"`
	Note             *string            `json:"note,omitempty"`
	Status           enums.RefundStatus `json:"status"`
	PolicyWindowDays int                `json:"policy_window_days"`
	ProcessorRef     *string            `json:"processor_ref,omitempty"`
	DecidedBy        *string            `json:"decided_by,omitempty"`
	DecidedAt        *time.Time         `json:"decided_at,omitempty"`
	FailureReason    *string            `json:"failure_reason,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func newRefundView(r *models.Refund) refundView {
	return refundView{
		ID:               r.ID,
		PaymentID:        r.PaymentID,
		RequesterEmail:   r.RequesterEmail,
		Amount:           r.Amount,
		Reason:           r.Reason,
		Note:             r.Note,
		Status:           r.Status,
		PolicyWindowDays: r.PolicyWindowDays,
		ProcessorRef:     r.ProcessorRef,
		DecidedBy:        r.DecidedBy,
		DecidedAt:        r.DecidedAt,
		FailureReason:    r.FailureReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newRefundViews(refunds []models.Refund) []refundView {
	out := make([]refundView, 0, len(refunds))
	for i := range refunds {
		out = append(out, newRefundView(&refunds[i]))
	}
	return out
}

type paymentView struct {
	ID                 uuid.UUID           `json:"id"`
	CustomerName       string              `json:"customer_name"`
	Email              string              `json:"email"`
	Amount             decimal.Decimal     `json:"amount"`
	Currency           enums.Currency      `json:"currency"`
	Package            string              `json:"package"`
	Status             enums.PaymentStatus `json:"status"`
	TransactionRef     *string             `json:"transaction_ref,omitempty"`
	ProcessorSessionID *string             `json:"processor_session_id,omitempty"`
	PaymentDate        time.Time           `json:"payment_date"`
	CreatedAt          time.Time           `json:"created_at"`
}

func newPaymentView(p *models.Payment) paymentView {
	return paymentView{
		ID:                 p.ID,
		CustomerName:       p.CustomerName,
		Email:              p.Email,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Package:            p.Package,
		Status:             p.Status,
		TransactionRef:     p.TransactionRef,
		ProcessorSessionID: p.ProcessorSessionID,
		PaymentDate:        p.PaymentDate,
		CreatedAt:          p.CreatedAt,
	}
}

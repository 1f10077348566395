package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/coralreef/resortpay/api/middleware"
	"github.com/coralreef/resortpay/api/responses"
	"github.com/coralreef/resortpay/api/validators"
	"github.com/coralreef/resortpay/internal/refunds"
	"github.com/coralreef/resortpay/pkg/auth"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
)

type refundRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
	Amount    string `json:"amount,omitempty" validate:"omitempty,money"`
	Reason    string `json:"reason" validate:"required,oneof=accidental_payment service_issue duplicate_charge other"`
	Note      string `json:"note,omitempty" validate:"max=1000"`
}

// RequestRefund opens a refund for the caller's payment.
func RequestRefund(svc refunds.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseOptionalDecimal("amount", payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Request(r.Context(), actor, refunds.RequestInput{
			PaymentID: uuid.MustParse(payload.PaymentID),
			Amount:    amount,
			Reason:    enums.RefundReason(payload.Reason),
			Note:      validators.SanitizeString(payload.Note, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRefundView(refund))
	}
}

// PaymentRefunds lists the refunds of one payment for its owner or an admin.
func PaymentRefunds(svc refunds.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForPayment(r.Context(), actor, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundViews(list))
	}
}

type refundDecisionRequest struct {
	Decision string `json:"action" validate:"required,oneof=approve deny"`
	Amount   string `json:"amount,omitempty" validate:"omitempty,money"`
}

// AdminRefundDecision approves or denies a requested refund.
func AdminRefundDecision(svc refunds.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		refundID, err := validators.ParseUUIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseRefundDecision(payload.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}
		amount, err := validators.ParseOptionalDecimal("amount", payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRefundID(ctx, refundID.String())
		}
		refund, err := svc.Decide(ctx, actor, refunds.DecideInput{
			RefundID: refundID,
			Decision: decision,
			Amount:   amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundView(refund))
	}
}

// AdminRefundReconcile polls the processor for an in-flight refund.
func AdminRefundReconcile(svc refunds.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		refundID, err := validators.ParseUUIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRefundID(ctx, refundID.String())
		}
		refund, err := svc.Reconcile(ctx, actor, refundID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundView(refund))
	}
}

// AdminRefundList lists refunds, optionally filtered by ?status=.
func AdminRefundList(svc refunds.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.RefundStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
		list, err := svc.List(r.Context(), actor, status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundViews(list))
	}
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return auth.Actor{}, false
	}
	return actor, true
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/coralreef/resortpay/api/responses"
	"github.com/coralreef/resortpay/api/validators"
	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/pkg/auth"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
)

// AdminPaymentList lists ledger entries filtered by ?status= and ?email=.
func AdminPaymentList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		payments, err := svc.List(r.Context(), ledger.ListFilter{
			Status: enums.PaymentStatus(strings.ToLower(strings.TrimSpace(query.Get("status")))),
			Email:  auth.NormalizeEmail(query.Get("email")),
			Page:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]paymentView, 0, len(payments))
		for i := range payments {
			out = append(out, newPaymentView(&payments[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminPaymentDetail returns one ledger entry.
func AdminPaymentDetail(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentView(payment))
	}
}

// AdminUnforwardedContexts lists paid booking contexts whose booking forward
// did not succeed.
func AdminUnforwardedContexts(svc checkoutcontext.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout context service unavailable"))
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUnforwarded(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coralreef/resortpay/api/responses"
	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/confirmation"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
)

// CheckoutConfirm resolves a returning checkout. Square redirects carry the
// order id instead of a session id.
func CheckoutConfirm(resolver confirmation.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "confirmation service unavailable"))
			return
		}

		query := r.URL.Query()
		sessionID := firstNonEmpty(query.Get("session_id"), query.Get("sessionId"), query.Get("orderId"))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required"))
			return
		}

		result, err := resolver.Confirm(r.Context(), sessionID, strings.TrimSpace(query.Get("token")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CheckoutContextLookup returns the pre-fill summary for a context token.
func CheckoutContextLookup(svc checkoutcontext.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout context service unavailable"))
			return
		}

		summary, err := svc.Lookup(r.Context(), strings.TrimSpace(chi.URLParam(r, "token")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coralreef/resortpay/api/responses"
	"github.com/coralreef/resortpay/api/validators"
	"github.com/coralreef/resortpay/internal/checkout"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
)

const maxNameLength = 128

type bookingCheckoutRequest struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Email       string          `json:"email" validate:"required,email"`
	Amount      string          `json:"amount" validate:"required,money"`
	Package     string          `json:"package" validate:"required,max=256"`
	BookingData json.RawMessage `json:"booking_data" validate:"required"`
}

type cartItemRequest struct {
	ProductID   string `json:"product_id,omitempty" validate:"omitempty,max=128"`
	ProductName string `json:"product_name" validate:"required,max=256"`
	UnitPrice   string `json:"unit_price" validate:"required,money"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
}

type cartCheckoutRequest struct {
	Name         string            `json:"name" validate:"required,max=128"`
	Email        string            `json:"email" validate:"required,email"`
	Currency     string            `json:"currency" validate:"omitempty,oneof=usd lkr USD LKR"`
	ExchangeRate string            `json:"exchange_rate,omitempty"`
	Cart         []cartItemRequest `json:"cart" validate:"required,min=1,dive"`
}

// CheckoutBooking opens a hosted checkout for a direct booking.
func CheckoutBooking(svc checkout.Initiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload bookingCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount"))
			return
		}

		session, err := svc.StartBooking(r.Context(), checkout.BookingCheckoutInput{
			Name:        validators.SanitizeString(payload.Name, maxNameLength),
			Email:       strings.TrimSpace(payload.Email),
			Amount:      amount,
			Package:     strings.TrimSpace(payload.Package),
			BookingData: payload.BookingData,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// CheckoutCart opens a hosted checkout for a cart, converting prices into the
// settlement currency when needed.
func CheckoutCart(svc checkout.Initiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload cartCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := validators.ParseOptionalDecimal("exchange_rate", payload.ExchangeRate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkout.CartItemInput, 0, len(payload.Cart))
		for _, item := range payload.Cart {
			price, err := decimal.NewFromString(strings.TrimSpace(item.UnitPrice))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit price"))
				return
			}
			items = append(items, checkout.CartItemInput{
				ProductID:   strings.TrimSpace(item.ProductID),
				ProductName: strings.TrimSpace(item.ProductName),
				Quantity:    item.Quantity,
				UnitPrice:   price,
			})
		}

		session, err := svc.StartCart(r.Context(), checkout.CartCheckoutInput{
			Name:         validators.SanitizeString(payload.Name, maxNameLength),
			Email:        strings.TrimSpace(payload.Email),
			Currency:     enums.Currency(strings.ToLower(strings.TrimSpace(payload.Currency))),
			ExchangeRate: rate,
			Items:        items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

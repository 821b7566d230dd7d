package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shoplyft/backend/api/middleware"
	"github.com/shoplyft/backend/api/responses"
	"github.com/shoplyft/backend/api/validators"
	"github.com/shoplyft/backend/internal/orders"
	"github.com/shoplyft/backend/internal/payments"
	"github.com/shoplyft/backend/pkg/enums"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

type checkoutLineRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	SizeID    *uuid.UUID `json:"size_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
}

type checkoutNewCardRequest struct {
	Number      string `json:"number" validate:"required,min=12,max=19"`
	Holder      string `json:"holder" validate:"required"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2020"`
	Save        bool   `json:"save"`
}

type checkoutRequest struct {
	AddressID *uuid.UUID              `json:"address_id,omitempty"`
	Lines     []checkoutLineRequest   `json:"lines" validate:"required,min=1,dive"`
	PromoCode string                  `json:"promo_code,omitempty"`
	Method    string                  `json:"payment_method" validate:"required,oneof=cash balance card"`
	CardID    *uuid.UUID              `json:"card_id,omitempty"`
	NewCard   *checkoutNewCardRequest `json:"new_card,omitempty"`
}

// Checkout settles an order in one shot.
func Checkout(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(req.Method)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		input := orders.CheckoutInput{
			UserID:    userID,
			AddressID: req.AddressID,
			PromoCode: req.PromoCode,
			Payment: payments.Request{
				Method: method,
				CardID: req.CardID,
			},
		}
		for _, line := range req.Lines {
			input.Lines = append(input.Lines, orders.CheckoutLine{
				ProductID: line.ProductID,
				SizeID:    line.SizeID,
				Quantity:  line.Quantity,
			})
		}
		if req.NewCard != nil {
			input.Payment.NewCard = &payments.NewCard{
				Number:      req.NewCard.Number,
				Holder:      req.NewCard.Holder,
				ExpiryMonth: req.NewCard.ExpiryMonth,
				ExpiryYear:  req.NewCard.ExpiryYear,
				Save:        req.NewCard.Save,
			}
		}

		order, err := svc.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

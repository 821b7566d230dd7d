package controllers

import (
	"net/http"
	"time"

	"github.com/shoplyft/backend/api/responses"
	"github.com/shoplyft/backend/api/validators"
	"github.com/shoplyft/backend/internal/promotions"
)

type validatePromoRequest struct {
	Code string `json:"code" validate:"required"`
}

// ValidatePromo checks a promo code without applying it.
func ValidatePromo(svc promotions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validatePromoRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		promo, err := svc.Validate(r.Context(), req.Code, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

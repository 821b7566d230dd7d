package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/api/middleware"
	"github.com/shoplyft/backend/api/responses"
	"github.com/shoplyft/backend/api/validators"
	"github.com/shoplyft/backend/internal/wallet"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

func parseCardID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "cardId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "card id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid card id")
	}
	return id, nil
}

// ListCards returns the caller's saved cards.
func ListCards(svc wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		cards, err := svc.Cards(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, cards)
	}
}

type addCardRequest struct {
	Number      string `json:"number" validate:"required,min=12,max=19"`
	Holder      string `json:"holder" validate:"required"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2020"`
}

// AddCard captures a new card for the caller.
func AddCard(svc wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var req addCardRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		card, err := svc.AddCard(r.Context(), nil, wallet.AddCardInput{
			UserID:      userID,
			Number:      req.Number,
			Holder:      req.Holder,
			ExpiryMonth: req.ExpiryMonth,
			ExpiryYear:  req.ExpiryYear,
		})
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, card)
	}
}

// DeleteCard removes an empty saved card.
func DeleteCard(svc wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		cardID, err := parseCardID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		if err := svc.DeleteCard(r.Context(), userID, cardID); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// SetDefaultCard marks one saved card as the default.
func SetDefaultCard(svc wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		cardID, err := parseCardID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		if err := svc.SetDefaultCard(r.Context(), userID, cardID); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// TopUpCard simulates an external top-up of a stored-value card.
func TopUpCard(svc wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		cardID, err := parseCardID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		var req topUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		if err := svc.TopUpCard(r.Context(), userID, cardID, req.Amount); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// CardTransactions returns one card's ledger.
func CardTransactions(svc wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		cardID, err := parseCardID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		txns, err := svc.CardTransactions(r.Context(), userID, cardID, limit)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, txns)
	}
}

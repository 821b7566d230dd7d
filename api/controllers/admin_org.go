package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplyft/backend/api/middleware"
	"github.com/shoplyft/backend/api/responses"
	"github.com/shoplyft/backend/api/validators"
	"github.com/shoplyft/backend/internal/activity"
	"github.com/shoplyft/backend/internal/orgledger"
)

// AdminOrgAccount returns the organization balance and tax reserve.
func AdminOrgAccount(svc orgledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := svc.Account(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// AdminOrgTransactions returns the organization ledger.
func AdminOrgTransactions(svc orgledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		txns, err := svc.Transactions(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, txns)
	}
}

type orgWithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	CardID uuid.UUID       `json:"card_id" validate:"required"`
}

// AdminOrgWithdraw moves settled funds onto an operator card.
func AdminOrgWithdraw(svc orgledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orgWithdrawRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		input := orgledger.WithdrawInput{Amount: req.Amount, CardID: req.CardID}
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			input.ActorID = &userID
		}

		txn, err := svc.Withdraw(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type orgPayTaxRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// AdminOrgPayTax settles part of the income tax reserve.
func AdminOrgPayTax(svc orgledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orgPayTaxRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		input := orgledger.PayTaxInput{Amount: req.Amount}
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			input.ActorID = &userID
		}

		txn, err := svc.PayTax(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// AdminActivityLog returns the most recent audit rows.
func AdminActivityLog(svc activity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		rows, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

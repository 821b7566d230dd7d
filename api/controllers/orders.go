package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shoplyft/backend/api/middleware"
	"github.com/shoplyft/backend/api/responses"
	"github.com/shoplyft/backend/api/validators"
	"github.com/shoplyft/backend/internal/orders"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
)

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) orders.Actor {
	actor := orders.Actor{Role: middleware.RoleFromContext(r.Context())}
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		actor.ID = &userID
	}
	return actor
}

// ListOrders returns the caller's recent orders.
func ListOrders(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		list, err := svc.List(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns a single order the caller owns.
func OrderDetail(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		order, err := svc.Get(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CancelOrder reverses a settled order.
func CancelOrder(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		// ownership check before touching the settlement
		if _, err := svc.Get(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderReceipt returns the fiscal receipt for an order.
func OrderReceipt(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		receipt, err := svc.Receipt(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

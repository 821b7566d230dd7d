package controllers

import (
	"net/http"

	"github.com/shoplyft/backend/api/responses"
	"github.com/shoplyft/backend/api/validators"
	"github.com/shoplyft/backend/internal/orders"
)

// AdminMarkPaid settles a cash-on-delivery order after collection.
func AdminMarkPaid(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		order, err := svc.MarkPaid(r.Context(), orderID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type shipRequest struct {
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// AdminShip opens the delivery leg of a paid order.
func AdminShip(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		var req shipRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), w, err)
				return
			}
		}

		order, err := svc.Ship(r.Context(), orderID, orders.ShipInput{
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
		}, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminMarkDelivered closes the delivery leg.
func AdminMarkDelivered(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}

		order, err := svc.MarkDelivered(r.Context(), orderID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminCancelOrder reverses any cancellable order regardless of owner.
func AdminCancelOrder(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
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

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shoplyft/backend/api/controllers"
	"github.com/shoplyft/backend/api/middleware"
	"github.com/shoplyft/backend/internal/activity"
	"github.com/shoplyft/backend/internal/orders"
	"github.com/shoplyft/backend/internal/orgledger"
	"github.com/shoplyft/backend/internal/promotions"
	"github.com/shoplyft/backend/internal/wallet"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger     zerolog.Logger
	DB         controllers.Pinger
	Registry   *prometheus.Registry
	Orders     orders.Service
	Wallet     wallet.Service
	Promotions promotions.Service
	Org        orgledger.Service
	Activity   activity.Service
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(deps.Logger),
		middleware.Recoverer(),
		middleware.Logging(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps.DB))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor())

		r.Post("/checkout", controllers.Checkout(deps.Orders))
		r.Post("/promotions/validate", controllers.ValidatePromo(deps.Promotions))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders))
			r.Get("/{orderId}/receipt", controllers.OrderReceipt(deps.Orders))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletProfile(deps.Wallet))
			r.Get("/transactions", controllers.WalletTransactions(deps.Wallet))
			r.Post("/deposit", controllers.WalletDeposit(deps.Wallet))
			r.Post("/withdraw", controllers.WalletWithdraw(deps.Wallet))
		})

		r.Route("/cards", func(r chi.Router) {
			r.Get("/", controllers.ListCards(deps.Wallet))
			r.Post("/", controllers.AddCard(deps.Wallet))
			r.Delete("/{cardId}", controllers.DeleteCard(deps.Wallet))
			r.Post("/{cardId}/default", controllers.SetDefaultCard(deps.Wallet))
			r.Post("/{cardId}/topup", controllers.TopUpCard(deps.Wallet))
			r.Get("/{cardId}/transactions", controllers.CardTransactions(deps.Wallet))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Actor())
		r.Use(middleware.RequireRole("admin"))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{orderId}/mark-paid", controllers.AdminMarkPaid(deps.Orders))
			r.Post("/{orderId}/ship", controllers.AdminShip(deps.Orders))
			r.Post("/{orderId}/deliver", controllers.AdminMarkDelivered(deps.Orders))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(deps.Orders))
		})

		r.Route("/org", func(r chi.Router) {
			r.Get("/account", controllers.AdminOrgAccount(deps.Org))
			r.Get("/transactions", controllers.AdminOrgTransactions(deps.Org))
			r.Post("/withdraw", controllers.AdminOrgWithdraw(deps.Org))
			r.Post("/pay-tax", controllers.AdminOrgPayTax(deps.Org))
		})

		r.Get("/activity", controllers.AdminActivityLog(deps.Activity))
	})

	return r
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/syncflo-billing/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/credits", h.GetCredits)

			r.Get("/api-keys", h.ListAPIKeys)
			r.Post("/api-keys", h.CreateAPIKey)
			r.Delete("/api-keys/{keyID}", h.RevokeAPIKey)
		})
	})

	r.Route("/api/billing", func(r chi.Router) {
		r.Get("/packages", h.ListPackages)
		r.Get("/coupons", h.ListCoupons)
		r.Post("/webhook", h.Webhook)

		r.With(h.authMiddleware.Optional).Post("/coupons/validate", h.ValidateCoupon)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders", h.CreateOrder)
			r.Post("/verify", h.VerifyPayment)
			r.Get("/payments", h.GetPayments)
			r.Get("/invoices/{paymentID}", h.GetInvoice)
		})
	})

	r.Route("/api/studio", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/campaigns", h.Campaigns)
		r.Get("/stats", h.Stats)
		r.Get("/assets", h.Assets)

		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Middleware)
			}

			r.Post("/analyze", h.Analyze)
			r.Post("/tones", h.Tones)
			r.Post("/ads", h.Ads)
			r.Post("/refine", h.Refine)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

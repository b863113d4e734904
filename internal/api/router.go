/**
 * @description
 * This file sets up the HTTP router for the payment-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, CORS, and authentication.
 * The fee schedule endpoint is public; everything else requires a portal
 * token, and the manual-review queue additionally requires the admin role.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser portal.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// PaymentRoutes creates and returns a new router for the payment service.
func PaymentRoutes(h *PaymentHandlers, jwksURL, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// The fee schedule is public so the portal can render it before login.
	r.Get("/fees", h.GetFeesHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(PortalAuthMiddleware(jwksURL))

		r.Post("/verify", h.VerifyPaymentHandler)
		r.Post("/manual", h.SubmitManualPaymentHandler)
		r.Get("/history/{accountID}", h.PaymentHistoryHandler)
		r.Get("/subscription/{accountID}", h.SubscriptionStatusHandler)

		// Administrator review queue for offline bank transfers.
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/manual/pending", h.ListPendingManualHandler)
			r.Post("/manual/{entryID}/review", h.ReviewManualPaymentHandler)
		})
	})

	return r
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/diagnosis/roombook/pkg/middleware"
)

// RouteDeps are optional cross-cutting stores. Nil disables the feature.
type RouteDeps struct {
	Limiter        mw.Limiter
	Idempotency    mw.IdempotencyStore
	IdempotencyTTL time.Duration
}

func (d RouteDeps) limit() func(http.Handler) http.Handler {
	if d.Limiter == nil {
		return passthrough
	}
	return mw.RateLimit(d.Limiter, accountKey)
}

func (d RouteDeps) idempotent() func(http.Handler) http.Handler {
	if d.Idempotency == nil {
		return passthrough
	}
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return mw.Idempotency(d.Idempotency, ttl)
}

func passthrough(next http.Handler) http.Handler { return next }

// accountKey buckets rate limits per authenticated account.
func accountKey(r *http.Request) string {
	if acc := currentAccount(r); acc != nil {
		return "account:" + strconv.FormatInt(acc.ID, 10)
	}
	return "addr:" + r.RemoteAddr
}

func (h *Handlers) Routes(r chi.Router, deps RouteDeps) {
	limit := deps.limit()

	r.Get("/", h.Welcome)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.Me)
			r.Put("/me", h.UpdateMe)
			r.Patch("/me", h.UpdateMe)
			r.Delete("/me", h.DeleteMe)
			r.Get("/bookings", h.MyBookings)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.With(deps.idempotent()).Post("/", h.CreateBooking)
			r.Get("/adminview", h.AdminView)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.Put("/", h.UpdateBooking)
				r.Patch("/", h.UpdateBooking)
				r.Delete("/", h.DeleteBooking)
				r.With(limit).Post("/otp", h.RequestBookingOTP)
				r.With(limit).Post("/otp/verify", h.VerifyBookingOTP)
			})
		})

		r.Route("/otp", func(r chi.Router) {
			r.With(limit).Post("/request-account-deletion", h.RequestAccountDeletion)
			r.With(limit).Post("/verify-account-deletion", h.VerifyAccountDeletion)
			r.With(limit).Post("/{id}/resend", h.ResendOTP)
			r.Get("/pending", h.PendingOTPs)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", h.ListUsers)
			r.Get("/audit", h.AuditLog)
		})
	})
}

// Package web provides the JSON API surface. Handlers decode and encode;
// decisions live in app services and domain functions.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quietpage/reflectd/adapters/metrics"
	"github.com/quietpage/reflectd/app"
	"github.com/quietpage/reflectd/domain/identity"
	"github.com/quietpage/reflectd/ports"
)

type ctxKey int

const claimsKey ctxKey = 0

// Handler provides the HTTP API endpoints.
type Handler struct {
	resolver     ports.IdentityResolver
	entitlements *app.EntitlementService
	journals     *app.JournalService
	billing      *app.BillingService
	webhooks     *app.WebhookService
	sync         *app.SyncService
	backfill     *app.BackfillService
	provider     ports.BillingProvider
	metrics      *metrics.Collector
	metricsPath  string
	adminToken   string
	logger       zerolog.Logger
}

// Deps contains dependencies for the HTTP handler.
type Deps struct {
	Resolver     ports.IdentityResolver
	Entitlements *app.EntitlementService
	Journals     *app.JournalService
	Billing      *app.BillingService
	Webhooks     *app.WebhookService
	Sync         *app.SyncService
	Backfill     *app.BackfillService
	Provider     ports.BillingProvider
	Metrics      *metrics.Collector
	MetricsPath  string // empty disables the metrics endpoint
	AdminToken   string // empty disables admin endpoints
	Logger       zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		resolver:     deps.Resolver,
		entitlements: deps.Entitlements,
		journals:     deps.Journals,
		billing:      deps.Billing,
		webhooks:     deps.Webhooks,
		sync:         deps.Sync,
		backfill:     deps.Backfill,
		provider:     deps.Provider,
		metrics:      deps.Metrics,
		metricsPath:  deps.MetricsPath,
		adminToken:   deps.AdminToken,
		logger:       deps.Logger,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(h.requestID)
	r.Use(h.cors)
	r.Use(h.instrument)

	r.Get("/healthz", h.handleHealth)
	if h.metricsPath != "" {
		r.Handle(h.metricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		// The webhook authenticates by signature, not bearer token.
		r.Post("/webhooks/stripe", h.handleStripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/entitlement", h.handleEntitlement)
			r.Get("/check-subscription", h.handleCheckSubscription)

			r.Route("/journals", func(r chi.Router) {
				r.Get("/", h.handleListJournals)
				r.Post("/", h.handleSaveJournal)
			})

			r.Route("/billing", func(r chi.Router) {
				r.Get("/status", h.handleBillingStatus)
				r.Post("/cancel", h.handleBillingCancel)
				r.Post("/reactivate", h.handleBillingReactivate)
				r.Get("/upcoming", h.handleBillingUpcoming)
				r.Post("/portal", h.handleBillingPortal)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Post("/sync-subscriptions", h.handleSyncSubscriptions)
			r.Post("/backfill-titles", h.handleBackfillTitles)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestID assigns each request an ID carried on the response and the logs.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics and an access log line.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		status := strconv.Itoa(ww.status)
		elapsed := time.Since(start)

		h.metrics.RequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, pattern, status).Observe(elapsed.Seconds())

		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// authenticate resolves the bearer credential into identity claims.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.resolver.Resolve(r.Header.Get("Authorization"))
		if err != nil {
			h.metrics.AuthFailures.Inc()
			h.logger.Debug().Err(err).Msg("authentication failed")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards operational endpoints with a static token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" || r.Header.Get("X-Admin-Token") != h.adminToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) identity.Claims {
	claims, _ := r.Context().Value(claimsKey).(identity.Claims)
	return claims
}

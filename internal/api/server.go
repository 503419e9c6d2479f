// SPDX-License-Identifier: MIT

// Package api exposes the operator-facing HTTP surface of the controller:
// machine status, manual event injection, and the health endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/openvend/vmcd/internal/fsm"
	"github.com/openvend/vmcd/internal/health"
	"github.com/openvend/vmcd/internal/log"
	"github.com/openvend/vmcd/internal/machine"
)

const (
	rateLimitRequests = 60
	rateLimitWindow   = time.Minute
)

// Controller is the subset of the machine the HTTP layer needs.
type Controller interface {
	Snapshot() machine.Snapshot
	Fire(ctx context.Context, trigger fsm.Trigger) error
	TryFire(ctx context.Context, trigger fsm.Trigger) (bool, error)
	OnPayment(amount int64)
	OnPaymentError(code string)
}

// Server routes operator requests to the machine controller.
type Server struct {
	ctrl   Controller
	health *health.Manager
	router chi.Router
}

func NewServer(ctrl Controller, hm *health.Manager) *Server {
	s := &Server{ctrl: ctrl, health: hm}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(httprate.Limit(
		rateLimitRequests,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/events", func(r chi.Router) {
			r.Post("/payment", s.handlePayment)
			r.Post("/button", s.handleButton)
			r.Post("/trigger", s.handleTrigger)
			r.Post("/try-trigger", s.handleTryTrigger)
		})
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := log.WithComponent("api")
		logger.Info().
			Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request completed")
	})
}

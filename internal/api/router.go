// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware.
type Router struct {
	handler    *Handler
	middleware *ChiMiddleware
	auth       *TokenValidator
}

// NewRouter creates a router. A nil auth disables token checks.
func NewRouter(handler *Handler, mw *ChiMiddleware, auth *TokenValidator) *Router {
	return &Router{handler: handler, middleware: mw, auth: auth}
}

// Setup builds the chi handler tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(PrometheusMetrics)

		r.Get("/health", router.handler.Health)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(router.auth))

			r.Get("/network", router.handler.GetNetwork)
			r.Put("/network", router.handler.PutNetwork)

			r.Get("/sync/pending", router.handler.Pending)
			r.Post("/sync", router.handler.SyncAll)
			r.Post("/sync/{entityType}", router.handler.SyncEntityType)

			r.Post("/cache/outlets/{outletID}/clear", router.handler.ClearOutlet)
			r.Post("/cache/clear-all", router.handler.ClearAll)

			r.Get("/oplog", router.handler.Oplog)

			r.Route("/collections/{collection}", func(r chi.Router) {
				r.Get("/", router.handler.ListCollection)
				r.Post("/", router.handler.CreateEntity)
				r.Get("/{id}", router.handler.GetEntity)
				r.Put("/{id}", router.handler.UpdateEntity)
				r.Delete("/{id}", router.handler.DeleteEntity)
			})

			r.Get("/ws", router.handler.WebSocket)
		})
	})

	return r
}

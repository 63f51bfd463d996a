// GeoRelay - Live Geographic Event Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/georelay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/georelay/internal/middleware"
)

// NewRouter builds the chi router for h.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	// Health and websocket sit outside the rate limit: monitors poll and
	// browsers reconnect.
	r.Get("/api/v1/health", h.Health)
	r.Get("/api/v1/ws", h.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.SessionStatus)
			r.Post("/connect", h.Connect)
			r.Post("/disconnect", h.Disconnect)
		})

		r.Route("/publish", func(r chi.Router) {
			r.Post("/", h.Publish)
			r.Post("/sample", h.PublishSample)
			r.Post("/location", h.PublishLocation)
		})

		r.Get("/markers", h.Markers)
		r.Get("/markers/{id}", h.Marker)
		r.Get("/permits", h.Permits)
	})

	return r
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

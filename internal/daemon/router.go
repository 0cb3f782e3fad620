// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/bgpsim/internal/health"
	"github.com/ManuGH/bgpsim/internal/log"
	"github.com/ManuGH/bgpsim/internal/metrics"
	"github.com/ManuGH/bgpsim/internal/session"
	"github.com/ManuGH/bgpsim/internal/supervisor"
	"github.com/ManuGH/bgpsim/internal/telemetry"
)

// RouterDeps are the read-only views the ops surface exposes.
type RouterDeps struct {
	Health    *health.Manager
	Sessions  func() []session.Snapshot
	Events    func() []supervisor.Event
	RateLimit int           // requests per window per client IP, default 600
	Window    time.Duration // default one minute
	Tracer    trace.Tracer  // default the global "bgpsim/http" tracer
}

// NewRouter builds the ops HTTP surface.
func NewRouter(d RouterDeps) http.Handler {
	if d.RateLimit <= 0 {
		d.RateLimit = 600
	}
	if d.Window <= 0 {
		d.Window = time.Minute
	}
	if d.Tracer == nil {
		d.Tracer = telemetry.Tracer("bgpsim/http")
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(tracing(d.Tracer))
	r.Use(requestMetrics)

	r.Get("/healthz", d.Health.ServeHealth)
	r.Get("/readyz", d.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(d.RateLimit, d.Window))
		r.Get("/sessions", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, req, d.Sessions())
		})
		r.Get("/sessions/{iface}", func(w http.ResponseWriter, req *http.Request) {
			iface, err := strconv.Atoi(chi.URLParam(req, "iface"))
			if err != nil {
				http.Error(w, "interface must be an integer", http.StatusBadRequest)
				return
			}
			for _, s := range d.Sessions() {
				if s.Interface == iface {
					writeJSON(w, req, s)
					return
				}
			}
			http.NotFound(w, req)
		})
		r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, req, d.Events())
		})
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	)
}

// requestMetrics labels by route pattern to keep cardinality bounded.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		metrics.ObserveHTTPRequest(r.Method, path, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "daemon")
		logger.Error().
			Err(err).
			Str("event", "daemon.encode_error").
			Msg("failed to encode response")
	}
}

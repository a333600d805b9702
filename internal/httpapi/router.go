// Package httpapi implements the listener & dispatcher (spec §4.1) and
// the full HTTP surface of §6, built on chi the way the teacher's own
// API server composes one router per resource group under a single
// top-level mount (pkg/api/server.go, pkg/api/v1/*.go).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/chain"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/registrar"
	"github.com/blockstack/gaia-gateway/internal/store"
)

const requestTimeout = 60 * time.Second

// Deps wires every backend the HTTP surface dispatches to (spec §2's
// dependency order: driver registry → datastore core →
// {registrar, chain} → auth/session → listener/dispatcher).
type Deps struct {
	AuthConfig auth.Config
	Store      *store.Store
	Registry   *drivers.Registry
	Registrar  *registrar.Queue
	Chain      *chain.Client
	Node       *NodeConfig
	Version    string
}

var requestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gaia_gateway_requests_total",
		Help: "Total HTTP requests handled, by route and status class.",
	},
	[]string{"route", "status_class"},
)

func init() {
	prometheus.MustRegister(requestsTotal)
}

// metricsMiddleware records a coarse per-route, per-status-class counter,
// mirroring the ambient-metrics convention the rest of the pack wires in
// via prometheus/client_golang.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rec, r)
		class := "2xx"
		switch {
		case rec.Status() >= 500:
			class = "5xx"
		case rec.Status() >= 400:
			class = "4xx"
		case rec.Status() >= 300:
			class = "3xx"
		}
		requestsTotal.WithLabelValues(chi.RouteContext(r.Context()).RoutePattern(), class).Inc()
	})
}

// NewRouter builds the gateway's full HTTP surface (spec §6).
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		recoverMiddleware,
		middleware.Timeout(requestTimeout),
		corsPreflight,
		metricsMiddleware,
	)

	r.Mount("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Mount("/ping", pingRouter())
		v1.Mount("/auth", authRouter(d))
		v1.Mount("/addresses", addressesRouter(d))
		v1.Mount("/blockchains", blockchainsRouter(d))
		v1.Mount("/names", namesRouter(d))
		v1.Mount("/namespaces", namespacesRouter(d))
		v1.Mount("/wallet", walletRouter(d))
		v1.Mount("/node", nodeRouter(d))
		v1.Mount("/prices", pricesRouter(d))
		v1.Mount("/stores", storesRouter(d))
		v1.Mount("/resources", resourcesRouter(d))
	})

	return r
}

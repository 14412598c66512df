// Package api serves the bulk reconciliation and experiment endpoints over
// HTTP using a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/hypolab/internal/experiment"
	"github.com/sells-group/hypolab/internal/reconcile"
)

// OwnerHeader carries the tenant id. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

const defaultMaxBodyBytes = 10 << 20

// Options configures the router.
type Options struct {
	CORSOrigins  []string
	RateLimitRPM int // zero disables rate limiting
	MaxBodyBytes int64

	// Compare defaults applied to fields a request leaves unset.
	Compare experiment.Config

	VolumeUnit    string
	VolumeMinimum float64
}

// Server holds the services behind the HTTP handlers.
type Server struct {
	reconcile   *reconcile.Service
	experiments *experiment.Service
	opts        Options
	validate    *validator.Validate
}

// NewServer creates a Server.
func NewServer(rs *reconcile.Service, es *experiment.Service, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Compare.PrimaryMetric == "" {
		opts.Compare = experiment.DefaultConfig()
	}
	return &Server{
		reconcile:   rs,
		experiments: es,
		opts:        opts,
		validate:    validator.New(),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", OwnerHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimitRPM > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimitRPM, time.Minute))
		}
		r.Post("/videos/bulk-update", s.handleBulkUpdate)
		r.Post("/experiments/compare", s.handleCompare)
		r.Get("/volume", s.handleVolume)
	})

	return r
}

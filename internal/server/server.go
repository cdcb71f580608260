package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
	"github.com/HaPhanBaoMinh/netobs/internal/topology"
)

// Server exposes pair buckets and topology graphs as JSON.
type Server struct {
	srv    *http.Server
	router *chi.Mux

	inventory domain.InventoryRepo
	explorer  *topology.Explorer
	defaults  topology.Options

	registry *prometheus.Registry
	requests *prometheus.HistogramVec
}

// NewServer builds a server bound to addr. It does not start listening.
func NewServer(addr string, inventory domain.InventoryRepo, explorer *topology.Explorer, opts ...Option) (*Server, error) {
	const (
		defaultIdleTimeout  = 120 * time.Second
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 60 * time.Second
	)

	mux := chi.NewRouter()
	s := &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			IdleTimeout:  defaultIdleTimeout,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		router:    mux,
		inventory: inventory,
		explorer:  explorer,
		defaults:  topology.DefaultOptions(),
		registry:  prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netobs",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	s.registry.MustRegister(s.requests)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("invalid server option: %w", err)
		}
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID, middleware.Recoverer, s.observe)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "netobs"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/sites", s.listSites)
		r.Get("/components", s.listComponents)
		r.Get("/processes", s.listProcesses)
		r.Get("/services", s.listServices)
		r.Get("/services/{id}/graph", s.serviceGraph)
		r.Get("/{collection}/{id}/pairs", s.pairs)
		r.Get("/{collection}/{id}/graph", s.entityGraph)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	if s.srv == nil {
		return fmt.Errorf("no server is currently configured")
	}
	log.WithField("addr", s.srv.Addr).Info("api listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return fmt.Errorf("no server is currently configured")
	}
	return s.srv.Shutdown(ctx)
}

// observe logs every request and records its duration by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.requests.WithLabelValues(route, fmt.Sprint(status)).Observe(elapsed.Seconds())
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   status,
			"duration": elapsed,
			"reqId":    middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

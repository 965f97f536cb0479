// Package api provides the HTTP server of cnbtaylor.
//
// It exposes the panel, the rule evaluation with user parameters, the
// calibrated default parameters and the data status as JSON, serves the
// static frontend, and publishes Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cnbtaylor/internal/app"
	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/pkg/models"
)

// Version is reported by /health.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	state    *app.State
	log      logrus.FieldLogger
	validate *validator.Validate
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served at /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, state *app.State, log logrus.FieldLogger, opts ...Option) *Server {
	srv := &Server{
		cfg:      cfg,
		state:    state,
		log:      log,
		validate: validator.New(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// Metrics
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/data", s.handleData)
		r.Get("/taylor", s.handleTaylor)
		r.Get("/default-params", s.handleDefaultParams)
		r.Get("/status", s.handleStatus)

		// Configuration (read-only)
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	s.mountFrontend(r, s.cfg.Web.Dir)
	return r
}

// mountFrontend serves dir at / when it exists.
func (s *Server) mountFrontend(r chi.Router, dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.log.WithField("dir", dir).Warn("Frontend directory not found")
		return
	}
	r.Handle("/*", http.FileServer(http.Dir(dir)))
}

// requestLogger logs one line per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  middleware.GetReqID(r.Context()),
				}).Debug("HTTP request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "ok", Version: Version})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	p, ok := s.state.Panel()
	if !ok {
		writeNoData(w, r)
		return
	}
	render.JSON(w, r, app.NewPanelData(p))
}

func (s *Server) handleTaylor(w http.ResponseWriter, r *http.Request) {
	p, ok := s.state.Panel()
	if !ok {
		writeNoData(w, r)
		return
	}

	params, err := s.parseParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	from := queryOr(q.Get("date_from"), app.DefaultDateFrom)
	to := queryOr(q.Get("date_to"), app.DefaultDateTo)

	res, err := app.EvaluateRule(p, params, from, to)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) handleDefaultParams(w http.ResponseWriter, r *http.Request) {
	params, _, err := s.state.Params()
	if err != nil {
		writeNoData(w, r)
		return
	}
	render.JSON(w, r, params)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.state.Status(r.Context()))
}

// parseParams reads rho, rstar, alpha and beta, defaulting each, and
// rejects values outside their ranges.
func (s *Server) parseParams(r *http.Request) (models.RuleParams, error) {
	params := models.DefaultRuleParams()
	q := r.URL.Query()

	fields := []struct {
		name string
		dst  *float64
	}{
		{"rho", &params.Rho},
		{"rstar", &params.RStar},
		{"alpha", &params.Alpha},
		{"beta", &params.Beta},
	}
	for _, f := range fields {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("%s must be a number", f.name)
		}
		*f.dst = v
	}

	if err := s.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = formatValidationError(fe)
			}
			return params, errors.New(strings.Join(msgs, "; "))
		}
		return params, err
	}
	return params, nil
}

// formatValidationError formats a range violation using the query name.
func formatValidationError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ============================================================
// Helpers
// ============================================================

func queryOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Detail: msg})
}

func writeNoData(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusServiceUnavailable, "Data not available. Check the connection to the data sources.")
}

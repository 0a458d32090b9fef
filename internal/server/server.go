// Package server exposes the assessment, report, download and admin
// operations over HTTP.
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
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/admin"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/download"
	"github.com/xkilldash9x/ari/internal/observability"
)

// AssessmentHandler runs one assessment action.
type AssessmentHandler interface {
	Handle(ctx context.Context, req schemas.AssessmentRequest) (*schemas.AssessmentResponse, error)
}

// ReportSender handles the send-report endpoint.
type ReportSender interface {
	Send(ctx context.Context, req schemas.ReportRequest) (*schemas.ReportResponse, error)
}

// DownloadResolver turns a download token into a PDF stream.
type DownloadResolver interface {
	Resolve(ctx context.Context, token, userAgent string) (*download.Download, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Assessments AssessmentHandler
	Reports     ReportSender
	Downloads   DownloadResolver
	Admin       *admin.Service
	AdminKey    string
	Metrics     *observability.Metrics
	// Gatherer backs /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer
}

// Server hosts the HTTP API.
type Server struct {
	cfg        config.ServerConfig
	reportRate int
	deps       Deps
	logger     *zap.Logger
	router     chi.Router
	now        func() time.Time
}

// New builds the router. reportRatePerMinute limits send-report per client
// address; zero disables the limit.
func New(cfg config.ServerConfig, reportRatePerMinute int, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		reportRate: reportRatePerMinute,
		deps:       deps,
		logger:     logger.Named("server"),
		now:        time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/healthz", s.handleHealthCheck)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/assessment", s.handleAssessment)
		r.With(rateLimitMiddleware(s.reportRate, s.now)).Post("/send-report", s.handleSendReport)
		r.Get("/download", s.handleDownload)
		r.Get("/manage-data", s.handleManageData)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondWithError(w, r, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", zap.String("address", ln.Addr().String()))
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dehost-labs/dehost/internal/serverdb"
	"github.com/dehost-labs/dehost/internal/webhook"
	"github.com/go-co-op/gocron"
)

// maxBodyBytes caps request bodies; every endpoint takes small JSON.
const maxBodyBytes = 1 << 20

// Server is the dehost web backend: pairing endpoints, the CLI auth page and
// the dashboard record-keeping routes.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
	scheduler   *gocron.Scheduler
	webhook     *webhook.Dispatcher // nil when no webhook URL is configured
	notifyWG    sync.WaitGroup
	listener    net.Listener
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(cfg.RateLimitPairing),
		scheduler:   gocron.NewScheduler(time.UTC),
	}
	if cfg.WebhookURL != "" {
		s.webhook = webhook.New(cfg.WebhookURL, cfg.WebhookSecret)
	}

	if err := s.scheduleHousekeeping(); err != nil {
		s.rateLimiter.Stop()
		return nil, err
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking) and starts housekeeping.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	s.scheduler.StartAsync()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.ListenAddr
	}
	return s.listener.Addr().String()
}

// Handler returns the fully wrapped HTTP handler, for embedding in tests or
// another server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Shutdown stops housekeeping, gracefully stops the HTTP server and waits for
// in-flight webhook deliveries.
func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop()
	s.rateLimiter.Stop()
	err := s.http.Shutdown(ctx)
	s.notifyWG.Wait()
	return err
}

// notify delivers a webhook event in the background. Failures are logged only.
func (s *Server) notify(ctx context.Context, event string, data any) {
	if s.webhook == nil {
		return
	}
	log := logFor(ctx).With("event", event)
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.webhook.Send(sendCtx, event, data); err != nil {
			s.metrics.webhookFailures.Inc()
			log.Warn("webhook delivery failed", "err", err)
			return
		}
		log.Debug("webhook delivered")
	}()
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Pairing
	mux.HandleFunc("POST /api/save-code", s.withPairingRateLimit(s.handleSaveCode))
	mux.HandleFunc("POST /api/verify-code", s.withPairingRateLimit(s.handleVerifyCode))
	mux.HandleFunc("POST /api/isVerified", s.withPairingRateLimit(s.handleIsVerified))
	mux.HandleFunc("GET /api/isVerified", s.withPairingRateLimit(s.handleIsVerified))
	mux.HandleFunc("GET /cliauth", s.handleCLIAuthPage)

	// Dashboard
	mux.HandleFunc("POST /api/users", s.handleUpsertUser)
	mux.HandleFunc("POST /api/deployments", s.withPairingRateLimit(s.handleRecordDeployment))
	mux.HandleFunc("GET /api/deployments", s.handleListDeployments)

	return chain(mux, withRequestID, recoverPanics, observe(s.metrics), s.corsMiddleware, limitBody(maxBodyBytes))
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

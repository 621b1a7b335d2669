package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ragline/pkg/config"
	"ragline/pkg/message"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 8080

	backendProbeInterval = 30 * time.Second
)

const (
	statusProcessed = "processed"
	statusIgnored   = "ignored"
)

// HealthChecker probes the model backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// IndexStatus exposes the document-index mode for the status endpoints.
type IndexStatus interface {
	Available() bool
}

// Server owns the webhook HTTP surface: Meta verification, message intake, and
// health/readiness endpoints.
type Server struct {
	cfg     *config.Config
	handler *Handler
	backend HealthChecker
	index   IndexStatus
	log     *slog.Logger

	mu              sync.RWMutex
	startedAt       time.Time
	backendLastOKAt time.Time
	backendLastErr  string
}

type statusResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	IndexAvailable  bool   `json:"index_available"`
	BackendLastOKAt string `json:"backend_last_ok_at,omitempty"`
	BackendLastErr  string `json:"backend_last_error,omitempty"`
}

// NewServer wires the webhook server from its collaborators.
func NewServer(cfg *config.Config, handler *Handler, backend HealthChecker, index IndexStatus, log *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if strings.TrimSpace(cfg.WhatsApp.VerifyToken) == "" {
		return nil, errors.New("whatsapp.verify_token is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg:     cfg,
		handler: handler,
		backend: backend,
		index:   index,
		log:     log.With("component", "webhook.server"),
	}, nil
}

// Run serves until ctx is canceled, probing the backend periodically.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.backend != nil {
		_ = s.checkBackendHealth(ctx)

		go func() {
			ticker := time.NewTicker(backendProbeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_ = s.checkBackendHealth(ctx)
				}
			}
		}()
	}

	host := strings.TrimSpace(s.cfg.Server.Host)
	if host == "" {
		host = defaultHost
	}
	port := s.cfg.Server.Port
	if port <= 0 {
		port = defaultPort
	}

	server := &http.Server{
		Addr:              host + ":" + strconv.Itoa(port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Webhook server started", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start webhook server: %w", err)
	}

	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /webhook", s.handleVerify)
	mux.HandleFunc("POST /webhook", s.handleReceive)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	return mux
}

// handleVerify answers the Meta webhook challenge: echo hub.challenge only when
// the mode is "subscribe" and the token matches the configured secret.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	mode := params.Get("hub.mode")
	verifyToken := params.Get("hub.verify_token")
	challenge := params.Get("hub.challenge")

	if mode != "subscribe" || verifyToken != s.cfg.WhatsApp.VerifyToken {
		s.log.Warn("Webhook verification failed", "mode", mode)
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	s.log.Info("Webhook verified")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleReceive normalizes the delivery and dispatches every message before
// answering. The caller always gets a 200 with a structured status, regardless
// of per-message outcomes; malformed payloads count as empty deliveries.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	var envelope message.Envelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		s.log.Warn("Ignoring undecodable webhook payload", "error", err)
		s.respondJSON(w, map[string]string{"status": statusIgnored})
		return
	}

	messages := message.Normalize(envelope)
	if len(messages) == 0 {
		s.respondJSON(w, map[string]string{"status": statusIgnored})
		return
	}

	s.log.Info("Received webhook delivery", "messages", len(messages))
	s.handler.Dispatch(r.Context(), messages)
	s.respondJSON(w, map[string]string{"status": statusProcessed})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Server) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	backendLastOK := ""
	if !s.backendLastOKAt.IsZero() {
		backendLastOK = s.backendLastOKAt.Format(time.RFC3339)
	}

	payload := statusResponse{
		Status:          status,
		UptimeSeconds:   uptime,
		IndexAvailable:  s.index != nil && s.index.Available(),
		BackendLastOKAt: backendLastOK,
		BackendLastErr:  s.backendLastErr,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write response", "error", err)
	}
}

func (s *Server) isReady() bool {
	if s.backend == nil {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.backendLastOKAt.IsZero() && s.backendLastErr == ""
}

func (s *Server) checkBackendHealth(ctx context.Context) error {
	if err := s.backend.Health(ctx); err != nil {
		s.mu.Lock()
		s.backendLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("backend health check failed: %w", err)
	}

	s.mu.Lock()
	s.backendLastErr = ""
	s.backendLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

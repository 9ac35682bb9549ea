package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/internal/worker/sse"
	"github.com/plenacare/plantao/pkg/models"
)

// processTimeout bounds one full message cycle, external calls included.
const processTimeout = 60 * time.Second

// Service is the HTTP surface around the orchestrator.
type Service struct {
	version     string
	orch        *Orchestrator
	broadcaster *sse.Broadcaster
	router      chi.Router
	startTime   time.Time
}

// NewService wires the routes.
func NewService(version string, orch *Orchestrator, broadcaster *sse.Broadcaster) *Service {
	s := &Service{
		version:     version,
		orch:        orch,
		broadcaster: broadcaster,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Post("/api/messages", s.handleMessage)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/events", s.broadcaster.ServeHTTP)
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Service) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", s.version).Msg("Worker listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleMessage accepts one inbound message envelope and returns the reply.
// Internal failures are logged and alertable but the end user still gets a
// safe, non-committal reply whenever one can be rendered.
func (s *Service) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed message envelope"})
		return
	}
	if msg.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phoneNumber is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), processTimeout)
	defer cancel()

	reply, err := s.orch.Process(ctx, msg)
	if err != nil {
		log.Error().Err(err).Str("sessionId", msg.PhoneNumber).Msg("Message processing failed")
		if reply == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		// A safe reply exists: the caller sees success, operators see the log.
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastReply(reply)
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

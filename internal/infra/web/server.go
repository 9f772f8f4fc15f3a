// File: internal/infra/web/server.go
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"whatsapp-ai-tutor/internal/domain/ports/adapter"
	"whatsapp-ai-tutor/internal/infra/logging"
	"whatsapp-ai-tutor/internal/infra/metrics"
	"whatsapp-ai-tutor/internal/usecase"
)

const livenessBody = "Servidor do Chatbot Pódio no ar!"

// Server exposes the webhook endpoints plus health and metrics.
type Server struct {
	tutor       usecase.TutorUseCase
	messenger   adapter.MessengerAdapter
	verifyToken string
	log         *zerolog.Logger
	dev         bool
	server      *http.Server
}

func NewServer(tutor usecase.TutorUseCase, messenger adapter.MessengerAdapter, verifyToken string, logger *zerolog.Logger, dev bool) *Server {
	return &Server{
		tutor:       tutor,
		messenger:   messenger,
		verifyToken: verifyToken,
		log:         logger,
		dev:         dev,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/whatsapp-webhook", s.handleHandshake)
	r.Post("/whatsapp-webhook", s.handleDelivery)
	return r
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Routes(),
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, livenessBody)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleHandshake answers the one-time webhook verification challenge.
// It succeeds iff hub.mode is present and hub.verify_token matches the
// pre-shared secret; anything else fails closed.
func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "" && token == s.verifyToken {
		s.log.Info().Msg("webhook verified")
		metrics.IncHandshake("verified")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}
	s.log.Info().Str("mode", mode).Msg("webhook verification rejected")
	metrics.IncHandshake("rejected")
	w.WriteHeader(http.StatusForbidden)
}

// handleDelivery processes one message notification. The provider is always
// acknowledged with 200 — a non-2xx here triggers provider-side retry storms —
// so every internal failure is logged and swallowed.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Msg("delivery handler panicked")
			metrics.IncDelivery("error")
		}
		w.WriteHeader(http.StatusOK)
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.log.Error().Err(err).Msg("read delivery body")
		metrics.IncDelivery("error")
		return
	}
	s.log.Debug().RawJSON("payload", normalizeJSON(body)).Msg("webhook notification received")

	var payload deliveryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed delivery payload")
		metrics.IncDelivery("empty")
		return
	}

	senderID, text, ok := payload.firstMessage()
	if !ok || strings.TrimSpace(text) == "" {
		metrics.IncDelivery("empty")
		return
	}

	ctx := logging.WithTraceID(r.Context(), uuid.NewString())
	ctx = logging.WithWaID(ctx, senderID)
	log := logging.With(ctx, s.log)
	log.Info().
		Str("from", logging.Redact(senderID, s.dev)).
		Str("text", logging.Redact(text, s.dev)).
		Msg("student message received")

	reply, err := s.tutor.Reply(ctx, senderID, text)
	if err != nil {
		log.Error().Err(err).Msg("tutor reply failed")
		metrics.IncDelivery("error")
		return
	}

	if err := s.messenger.SendText(ctx, senderID, reply); err != nil {
		// Best-effort delivery: the student simply gets nothing this round.
		log.Error().Err(err).Msg("whatsapp send failed")
		metrics.IncDelivery("error")
		return
	}
	metrics.IncDelivery("handled")
}

// normalizeJSON keeps the debug log valid when the provider sends junk.
func normalizeJSON(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}

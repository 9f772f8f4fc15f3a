// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"whatsapp-ai-tutor/internal/config"
	"whatsapp-ai-tutor/internal/domain/ports/adapter"
	"whatsapp-ai-tutor/internal/domain/ports/repository"
	aiAdapters "whatsapp-ai-tutor/internal/infra/adapters/ai"
	"whatsapp-ai-tutor/internal/infra/adapters/whatsapp"
	"whatsapp-ai-tutor/internal/infra/logging"
	"whatsapp-ai-tutor/internal/infra/memstore"
	"whatsapp-ai-tutor/internal/infra/metrics"
	red "whatsapp-ai-tutor/internal/infra/redis"
	"whatsapp-ai-tutor/internal/infra/security"
	"whatsapp-ai-tutor/internal/infra/web"
	"whatsapp-ai-tutor/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()

	// ---- Session store (redis when configured, in-memory otherwise) ----
	var sessions repository.ChatSessionRepository
	var locker repository.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()

		var encSvc *security.EncryptionService
		if cfg.Security.EncryptionKey != "" {
			encSvc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
			if err != nil {
				log.Fatalf("encryption: %v", err)
			}
		} else {
			logger.Warn().Msg("security.encryption_key not set; storing sessions in plaintext")
		}
		sessions = red.NewSessionRepo(redisClient, cfg.Redis.TTL, encSvc)
		locker = red.NewLocker(redisClient)
		logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("session store: redis")
	} else {
		sessions = memstore.NewSessionRepo()
		locker = memstore.NewKeyedLocker()
		logger.Info().Msg("session store: in-memory (sessions live for the process lifetime)")
	}

	// ---- AI adapter (Gemini -> OpenAI-compatible -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI-compatible")
	default:
		// validate() only lets this through in dev mode
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Info().Msg("AI adapter: noop")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Wiring ----
	tutorUC := usecase.NewTutorUseCase(sessions, locker, ai, cfg.Persona, cfg.AI.DefaultModel, logger)
	messenger := whatsapp.NewClient(cfg.WhatsApp, logger, cfg.Runtime.Dev)
	srv := web.NewServer(tutorUC, messenger, cfg.WhatsApp.VerifyToken, logger, cfg.Runtime.Dev)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(cfg.Server.Port) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("http server stopped")
	}
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

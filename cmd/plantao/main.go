// Package main provides the plantao worker entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/plenacare/plantao/internal/audit"
	"github.com/plenacare/plantao/internal/backend"
	"github.com/plenacare/plantao/internal/config"
	"github.com/plenacare/plantao/internal/fiscal"
	"github.com/plenacare/plantao/internal/flows"
	"github.com/plenacare/plantao/internal/pending"
	"github.com/plenacare/plantao/internal/rules"
	"github.com/plenacare/plantao/internal/store"
	"github.com/plenacare/plantao/internal/watcher"
	"github.com/plenacare/plantao/internal/worker"
	"github.com/plenacare/plantao/internal/worker/sse"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	addr := flag.String("addr", "", "Listen address (default: :<configured port>)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	rulesPath := flag.String("rules", "", "Phrase-rules file (default: from settings)")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	if *debug {
		cfg.LogLevel = "debug"
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if *rulesPath != "" {
		cfg.RulesPath = *rulesPath
	}

	phraseRules, err := rules.Load(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RulesPath).Msg("Failed to load phrase rules")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down worker")
		cancel()
	}()

	// Session store: Redis in production, memory when no address is set.
	var sessions store.SessionStore
	if cfg.RedisAddr != "" {
		redisStore, err := store.NewRedisStore(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.SessionTTLDuration(),
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		sessions = store.NewMemoryStore()
		log.Warn().Msg("No Redis address configured, sessions are in-memory only")
	}

	// Audit ledger is optional: without a DSN commits are only logged.
	var recorder pending.Recorder
	if cfg.PostgresDSN != "" {
		ledger, err := audit.NewLedger(audit.Config{DSN: cfg.PostgresDSN, LogLevel: logger.Silent})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open audit ledger")
		}
		defer ledger.Close()
		recorder = ledger
		log.Info().Msg("Audit ledger enabled")
	}

	ops := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeoutDuration(),
	})

	var classifier fiscal.Classifier
	var responder fiscal.Responder
	if cfg.FiscalURL != "" {
		fiscalClient := fiscal.NewClient(fiscal.Config{
			BaseURL: cfg.FiscalURL,
			Timeout: cfg.FiscalTimeoutDuration(),
		})
		classifier = fiscalClient
		responder = fiscalClient
	} else {
		log.Warn().Msg("No fiscal URL configured, running with deterministic templates only")
	}

	pend := pending.NewManager(ops, phraseRules, recorder)
	handlers := flows.NewHandlers(ops, pend, recorder)
	orch := worker.NewOrchestrator(sessions, phraseRules, handlers, pend, classifier, responder, worker.NewMetrics())

	// Hot-reload the phrase rules on file change.
	if w, err := watcher.New(cfg.RulesPath, func() {
		if err := phraseRules.Reload(cfg.RulesPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.RulesPath).Msg("Rules reload failed, keeping current rules")
		} else {
			log.Info().Str("path", cfg.RulesPath).Msg("Rules reloaded")
		}
	}); err == nil {
		if err := w.Start(); err != nil {
			log.Warn().Err(err).Msg("Rules watcher failed to start")
		}
		defer w.Stop()
	} else {
		log.Warn().Err(err).Msg("Rules watcher unavailable")
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", cfg.WorkerPort)
	}

	svc := worker.NewService(Version, orch, sse.NewBroadcaster())
	if err := svc.Run(ctx, listenAddr); err != nil {
		log.Fatal().Err(err).Msg("Worker exited with error")
	}
	log.Info().Msg("Worker stopped")
}

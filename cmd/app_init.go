package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/auth"
	"github.com/customs-ai/hs-classify/internal/chat"
	"github.com/customs-ai/hs-classify/internal/credits"
	"github.com/customs-ai/hs-classify/internal/pipeline"
	"github.com/customs-ai/hs-classify/internal/store"
	"github.com/customs-ai/hs-classify/internal/tariff"
	"github.com/customs-ai/hs-classify/pkg/reasoning"
)

// appEnv holds the initialized store and service components used by the
// serve and classify commands.
type appEnv struct {
	Store        store.Store // nil in dev mode
	Gate         *credits.Gate
	Orchestrator *pipeline.Orchestrator
	Assistant    *chat.Assistant
	Verifier     *auth.Verifier
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp sets up the store, the reasoning client, and the pipeline.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var st store.Store
	if cfg.Store.Configured() {
		s, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		st = s
	} else {
		zap.L().Warn("no database configured, running in dev mode: unlimited credits, no history")
	}

	ai := reasoning.NewClient(cfg.Anthropic.Key,
		reasoning.WithRateLimit(cfg.Anthropic.RatePerSecond, cfg.Anthropic.RateBurst),
	)

	lookup := tariff.NewLookup(st)
	identifier := pipeline.NewIdentifier(ai,
		cfg.Anthropic.IdentifyModel,
		cfg.Classify.IdentifyMaxTokens,
		cfg.Anthropic.WebSearchUses,
		time.Duration(cfg.Classify.IdentifyTimeoutSecs)*time.Second,
	)
	classifier := pipeline.NewClassifier(
		cfg.Anthropic.ClassifyModel,
		cfg.Anthropic.MaxTokens,
		cfg.Anthropic.WebSearchUses,
	)
	orch := pipeline.NewOrchestrator(ai, identifier, lookup, classifier,
		time.Duration(cfg.Classify.TimeoutSecs)*time.Second,
	)
	assistant := chat.NewAssistant(ai, lookup,
		cfg.Anthropic.ChatModel,
		cfg.Chat.MaxTokens,
		cfg.Chat.HistoryTurns,
	)

	return &appEnv{
		Store:        st,
		Gate:         credits.NewGate(st, cfg.Auth.TestMode),
		Orchestrator: orch,
		Assistant:    assistant,
		Verifier:     auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TestMode),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

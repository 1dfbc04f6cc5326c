// Package server assembles the providers, orchestrator, result store and HTTP
// routes from a config.Config. The local server and the Lambda share it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/api"
	"github.com/fpang/prompt-enhancer/internal/config"
	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/provider/gemini"
	"github.com/fpang/prompt-enhancer/internal/provider/openai"
	"github.com/fpang/prompt-enhancer/internal/store"
	"github.com/fpang/prompt-enhancer/internal/web"
)

// Observer receives both enhancement and request events. The Prometheus and
// EMF observers in the metrics package satisfy it.
type Observer interface {
	enhance.Observer
	api.RequestObserver
}

// Options customise New. The zero value is valid.
type Options struct {
	// Store overrides the backend selected by Config.ResultStore.
	Store store.ResultStore

	// Observer receives metrics events.
	Observer Observer

	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
}

// Server holds the wired components.
type Server struct {
	Config       *config.Config
	Primary      *gemini.Provider
	Secondary    *openai.Provider
	Orchestrator *enhance.Orchestrator
	Store        store.ResultStore

	handler http.Handler
}

// New builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	primary, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		TextModel:   cfg.Gemini.TextModel,
		VisionModel: cfg.Gemini.VisionModel,
		BaseURL:     cfg.Gemini.BaseURL,
		Timeout:     cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
	}
	secondary := openai.New(openai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		TextModel:   cfg.OpenAI.TextModel,
		VisionModel: cfg.OpenAI.VisionModel,
		BaseURL:     cfg.OpenAI.BaseURL,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     cfg.ProviderTimeout,
	})

	st := opts.Store
	if st == nil {
		st, err = NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	var observer enhance.Observer
	var requests api.RequestObserver
	if opts.Observer != nil {
		observer = opts.Observer
		requests = opts.Observer
	}

	orch := enhance.NewOrchestrator(enhance.OrchestratorConfig{
		Primary:       primary,
		Secondary:     secondary,
		AllowFallback: cfg.FallbackEnabled,
		Observer:      observer,
	})

	pages, err := web.New(web.Config{
		Orchestrator:    orch,
		Store:           st,
		PrimaryVendor:   primary.Vendor(),
		SecondaryVendor: secondary.Vendor(),
		FallbackEnabled: cfg.FallbackEnabled,
		MaxImageBytes:   cfg.MaxImageBytes,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	api.New(api.Config{
		Orchestrator:  orch,
		Primary:       primary,
		Secondary:     secondary,
		Store:         st,
		MaxImageBytes: cfg.MaxImageBytes,
		Metrics:       opts.MetricsHandler,
	}).Register(mux)
	pages.Register(mux)

	return &Server{
		Config:       cfg,
		Primary:      primary,
		Secondary:    secondary,
		Orchestrator: orch,
		Store:        st,
		handler:      api.Wrap(mux, requests),
	}, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// NewStore creates the result store selected by cfg.ResultStore.
func NewStore(ctx context.Context, cfg *config.Config) (store.ResultStore, error) {
	switch cfg.ResultStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := store.NewRedisStore(client, cfg.ResultTTL)
		if err := rs.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Debug().Str("addr", cfg.Redis.Addr).Msg("Redis result store ready")
		return rs, nil

	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.ResultTable, cfg.ResultTTL), nil

	case config.StoreMemory, "":
		return store.NewMemoryStore(cfg.ResultTTL), nil

	default:
		return nil, fmt.Errorf("unknown result store %q", cfg.ResultStore)
	}
}

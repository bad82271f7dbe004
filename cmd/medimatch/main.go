package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rbpanchal/medi-match/internal/agent"
	"github.com/rbpanchal/medi-match/internal/api"
	"github.com/rbpanchal/medi-match/internal/config"
	"github.com/rbpanchal/medi-match/internal/embedding"
	"github.com/rbpanchal/medi-match/internal/memory"
	"github.com/rbpanchal/medi-match/internal/provider"
	"github.com/rbpanchal/medi-match/internal/rag"
	pgstore "github.com/rbpanchal/medi-match/internal/store"
	"github.com/rbpanchal/medi-match/internal/tools"
	"github.com/rbpanchal/medi-match/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Medi-Match...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/medimatch.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	ctx := context.Background()

	// Model discovery cache: Redis when configured, else in-process
	var modelCache provider.ModelCache = provider.NewMemoryCache()
	var redisCache *provider.RedisCache
	if cfg.Database.Redis.URL != "" {
		rc, rErr := provider.NewRedisCache(cfg.Database.Redis.URL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, caching models in memory", zap.Error(rErr))
		} else {
			redisCache = rc
			modelCache = rc
		}
	}

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra,
			AttemptTimeout: pc.AttemptTimeout.Duration,
			Budget:         pc.Budget.Duration,
			MaxAttempts:    pc.MaxAttempts,
			ModelCacheTTL:  pc.ModelCacheTTL.Duration,
		}
		switch pc.Type {
		case "gemini", "google":
			router.Register(provider.NewGeminiProvider(provCfg, logger, provider.WithModelCache(modelCache)))
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if cfg.Generative.Default != "" {
		router.SetDefault(cfg.Generative.Default)
	}
	router.SetFallbacks(cfg.Generative.Fallbacks)

	// Initialize PostgreSQL store
	pgStore, err := pgstore.New(ctx, cfg.Database.Postgres.DSN, cfg.Database.Postgres.MaxConns, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	if err := pgStore.Migrate(ctx, cfg.Server.MigrationsDir); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Semantic product search requires Qdrant and an embedding provider
	var toolOpts []tools.Option
	var qdrant *vectorstore.Client
	if cfg.Database.Qdrant.Host != "" && cfg.Embedding.APIKey != "" {
		index, qc, ixErr := newProductIndex(ctx, cfg, pgStore, logger)
		if ixErr != nil {
			logger.Warn("semantic search unavailable", zap.Error(ixErr))
		} else {
			qdrant = qc
			toolOpts = append(toolOpts, tools.WithSemanticSearch(index))
			go func() {
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				if _, err := index.Reindex(rctx); err != nil {
					logger.Warn("product reindex failed", zap.Error(err))
				}
			}()
		}
	}

	toolbox := tools.New(pgStore, logger, toolOpts...)
	sink := memory.NewSink(pgStore, logger)
	engine := agent.NewEngine(toolbox, toolbox, router, logger, agent.WithRecorder(sink))

	// Build HTTP handler
	handler := api.NewHandler(engine, pgStore, cfg.Server.AllowedOrigins, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Medi-Match listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Medi-Match...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	sink.Close()
	if qdrant != nil {
		qdrant.Close()
	}
	if redisCache != nil {
		redisCache.Close()
	}
	pgStore.Close()
}

func newProductIndex(ctx context.Context, cfg *config.Config, catalog rag.CatalogSource, logger *zap.Logger) (*rag.ProductIndex, *vectorstore.Client, error) {
	embedder, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout.Duration,
	})
	if err != nil {
		return nil, nil, err
	}
	qc, err := vectorstore.NewClient(vectorstore.QdrantConfig{
		Host:   cfg.Database.Qdrant.Host,
		Port:   cfg.Database.Qdrant.Port,
		APIKey: cfg.Database.Qdrant.APIKey,
	})
	if err != nil {
		return nil, nil, err
	}
	index := rag.NewProductIndex(embedder, qc, catalog, cfg.Database.Qdrant.MinScore, logger)
	if err := index.Init(ctx); err != nil {
		qc.Close()
		return nil, nil, err
	}
	return index, qc, nil
}

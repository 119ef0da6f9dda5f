package fixgenie

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/fixgenie/internal/fixgenie/biz"
	"github.com/kart-io/fixgenie/internal/fixgenie/corpus"
	"github.com/kart-io/fixgenie/internal/fixgenie/handler"
	"github.com/kart-io/fixgenie/internal/fixgenie/ingest"
	"github.com/kart-io/fixgenie/internal/fixgenie/metrics"
	"github.com/kart-io/fixgenie/internal/fixgenie/router"
	"github.com/kart-io/fixgenie/internal/fixgenie/store"
	"github.com/kart-io/fixgenie/internal/pkg/lexical"
	"github.com/kart-io/fixgenie/pkg/llm"

	// Register LLM providers.
	_ "github.com/kart-io/fixgenie/pkg/llm/gemini"
)

// Run assembles and runs the FixGenie service with the given options.
func Run(opts *Options) error {
	// 1. Initialize the logger.
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting FixGenie service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Open the canonical corpus database.
	db, err := store.OpenDB(opts.Corpus.DSN)
	if err != nil {
		return fmt.Errorf("failed to open corpus database: %w", err)
	}
	corpusStore := store.NewSQLCorpusStore(db)
	feedbackStore := store.NewSQLFeedbackStore(db)
	logger.Infow("Corpus database opened", "dsn", opts.Corpus.DSN)

	// 3. Initialize the embedding provider, optionally behind the Redis
	// cache.
	embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if opts.Cache.Enabled {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:         opts.Redis.Addr(),
			Password:     opts.Redis.Password,
			DB:           opts.Redis.Database,
			MaxRetries:   opts.Redis.MaxRetries,
			PoolSize:     opts.Redis.PoolSize,
			MinIdleConns: opts.Redis.MinIdleConns,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("failed to connect to redis, embedding cache disabled", "error", err.Error())
			_ = redisClient.Close()
		} else {
			defer func() { _ = redisClient.Close() }()
			embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient, &llm.EmbeddingCacheConfig{
				Enabled:   true,
				TTL:       opts.Cache.TTL,
				KeyPrefix: opts.Cache.KeyPrefix,
				ModelID:   opts.Embedding.Model,
				Observer:  metrics.Get().RecordEmbedCache,
			})
			logger.Infow("Embedding cache initialized", "addr", opts.Redis.Addr(), "ttl", opts.Cache.TTL)
		}
	}
	logger.Infow("Embedding provider initialized",
		"provider", opts.Embedding.Provider,
		"model", opts.Embedding.Model,
	)

	// 4. Initialize the chat provider.
	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", opts.Chat.Provider,
		"model", opts.Chat.Model,
	)

	// 5. Initialize the vector index. An empty Milvus address selects the
	// in-process index.
	var vectors store.VectorIndex
	if opts.Milvus.Address != "" {
		milvusIndex, err := store.NewMilvusIndex(ctx, opts.Milvus, opts.Embedding.Dimension)
		if err != nil {
			return fmt.Errorf("failed to initialize milvus index: %w", err)
		}
		defer func() { _ = milvusIndex.Close(context.Background()) }()
		vectors = milvusIndex
		logger.Infow("Milvus vector index initialized", "address", opts.Milvus.Address, "collection", opts.Milvus.Collection)
	} else {
		vectors = store.NewMemoryIndex()
		logger.Info("In-memory vector index initialized")
	}

	// 6. Build the corpus manager and publish the current corpus.
	lexicalIndex := lexical.NewIndex()
	manager := corpus.NewManager(corpusStore, vectors, lexicalIndex, embedder)
	if err := manager.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to publish corpus: %w", err)
	}
	manager.StartAuditLoop(ctx, opts.Corpus.AuditInterval)

	// 7. Set up ingest: pipeline, initial data file load, change watcher.
	pipeline := ingest.NewPipeline(manager, opts.Corpus.IngestWorkers)
	if opts.Corpus.DataFile != "" {
		if report, err := pipeline.RunFile(ctx, opts.Corpus.DataFile); err != nil {
			logger.Errorw("initial data file load failed", "path", opts.Corpus.DataFile, "error", err)
		} else {
			logger.Infow("initial data file loaded",
				"path", opts.Corpus.DataFile,
				"ingested", report.Ingested,
				"quarantined", len(report.Quarantined),
			)
		}

		watcher, err := corpus.NewWatcher(opts.Corpus.DataFile, func(ctx context.Context, path string) error {
			_, err := pipeline.RunFile(ctx, path)
			return err
		})
		if err != nil {
			logger.Warnw("data file watcher unavailable", "error", err)
		} else {
			watcher.Start(ctx)
		}
	}

	// 8. Assemble the query service.
	limiter := llm.NewRateLimiter(&llm.RateLimiterConfig{
		RequestsPerSecond: opts.RateLimit.RequestsPerSecond,
		Burst:             opts.RateLimit.Burst,
		MaxBacklog:        opts.RateLimit.MaxBacklog,
	})
	service := biz.NewService(
		biz.NewRouter(corpusStore),
		biz.NewRetriever(embedder, vectors, lexicalIndex, corpusStore),
		biz.NewValidator(corpusStore),
		biz.NewGenerator(chatProvider, limiter),
		corpusStore,
		feedbackStore,
		opts.Server.RequestDeadline,
	)
	logger.Info("Query service initialized")

	// 9. Mount routes and serve.
	engine := router.New(router.Handlers{
		Query:  handler.NewQueryHandler(service),
		Ingest: handler.NewIngestHandler(pipeline, manager),
		Admin:  handler.NewAdminHandler(manager, embedder.Name(), chatProvider.Name()),
	})
	srv := &http.Server{
		Addr:    opts.Server.Addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("FixGenie service is ready", "addr", opts.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Infow("shutting down", "signal", sig.String())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("FixGenie service stopped")
	return nil
}

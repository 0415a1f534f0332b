package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/config"
	"github.com/cloo-solutions/inkwell/internal/database"
	"github.com/cloo-solutions/inkwell/internal/logger"
	"github.com/cloo-solutions/inkwell/internal/openai"
	"github.com/cloo-solutions/inkwell/internal/repository"
	"github.com/cloo-solutions/inkwell/internal/service"
	"github.com/cloo-solutions/inkwell/internal/storage"
)

// app holds every long-lived dependency of the daemon. Services are built
// once here and passed explicitly to the HTTP layer and the worker.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool

	indexJobs *repository.IndexJobRepository
	counter   service.TokenCounter
	chunking  service.ChunkConfig
	diff      *service.DiffEngine

	versions    *service.VersionService
	manuscripts *service.ManuscriptService
	suggestions *service.SuggestionService
	indexing    *service.IndexingService
}

type appOptions struct {
	migrate          bool
	migrationsSource string
}

func loadConfigAndLogger() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	mode := cfg.LogMode
	if cfg.Debug {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts appOptions) (*app, error) {
	if opts.migrate {
		if err := database.Migrate(cfg.DatabaseURL, opts.migrationsSource, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	log.Info("connected to database")

	manuscriptRepo := repository.NewManuscriptRepository(pool)
	versionRepo := repository.NewVersionRepository(pool)
	editRepo := repository.NewEditRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	indexJobRepo := repository.NewIndexJobRepository(pool)
	indexJobRepo.SetLease(cfg.IndexLease)
	stylePrefRepo := repository.NewStylePrefRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var snapshots service.SnapshotStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
			URLExpiry:       cfg.S3URLExpiry,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info("snapshot bucket ready", "bucket", cfg.S3Bucket)
		snapshots = s3Client
	} else {
		log.Warn("S3 not configured, version snapshots disabled")
	}

	retry := service.RetryConfig{
		Timeout:         cfg.ProviderTimeout,
		MaxRetries:      cfg.ProviderMaxRetries,
		InitialInterval: service.DefaultRetryConfig().InitialInterval,
		MaxInterval:     service.DefaultRetryConfig().MaxInterval,
	}

	var (
		embeddings service.EmbeddingClient
		retriever  service.ChunkRetriever
		generator  service.SuggestionGenerator
	)
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			GenerationModel:     cfg.GenModel,
			Temperature:         cfg.GenTemperature,
			MaxTokens:           cfg.GenMaxTokens,
			RatePerSecond:       cfg.GenRatePerSec,
		})
		embeddings = client
		retriever = service.NewRetrievalService(client, chunkRepo)
		generator = client
	} else {
		log.Warn("OpenAI not configured, chunks are stored without embeddings and suggestions are unavailable")
	}

	counter := service.NewTokenCounter(cfg.Tokenizer)
	chunking := service.ChunkConfig{
		MaxTokensPerChunk: cfg.ChunkMaxTokens,
		OverlapTokens:     cfg.ChunkOverlapTokens,
	}
	diff := service.NewDiffEngine(cfg.DiffTimeout)

	suggestionCfg := service.DefaultSuggestionConfig()
	suggestionCfg.Retry = retry

	a := &app{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		indexJobs: indexJobRepo,
		counter:   counter,
		chunking:  chunking,
		diff:      diff,
		versions:  service.NewVersionService(txRunner, editRepo, snapshots, log),
		manuscripts: service.NewManuscriptService(service.ManuscriptDeps{
			Manuscripts: manuscriptRepo,
			Versions:    versionRepo,
			Chunks:      chunkRepo,
			IndexJobs:   indexJobRepo,
			StylePrefs:  stylePrefRepo,
			Snapshots:   snapshots,
		}),
		suggestions: service.NewSuggestionService(service.SuggestionDeps{
			Manuscripts: manuscriptRepo,
			Versions:    versionRepo,
			Edits:       editRepo,
			StylePrefs:  stylePrefRepo,
			Retriever:   retriever,
			Generator:   generator,
			TxRunner:    txRunner,
			Diff:        diff,
			Logger:      log,
		}, suggestionCfg),
		indexing: service.NewIndexingService(
			versionRepo,
			txRunner,
			embeddings,
			service.NewChunker(chunking, counter),
			service.IndexingConfig{
				BatchSize:   cfg.IndexBatchSize,
				Concurrency: cfg.IndexConcurrency,
				Retry:       retry,
			},
			log,
		),
	}
	return a, nil
}

func (a *app) Close() {
	a.pool.Close()
}

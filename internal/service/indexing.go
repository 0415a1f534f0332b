package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/logger"
	"github.com/cloo-solutions/inkwell/internal/metrics"
	"github.com/cloo-solutions/inkwell/internal/telemetry"
)

// IndexingConfig controls batch embedding of chunks.
type IndexingConfig struct {
	BatchSize   int
	Concurrency int
	Retry       RetryConfig
}

// DefaultIndexingConfig provides sane defaults for indexing.
func DefaultIndexingConfig() IndexingConfig {
	return IndexingConfig{
		BatchSize:   64,
		Concurrency: 4,
		Retry:       DefaultRetryConfig(),
	}
}

// IndexingService chunks a version's content, embeds every chunk and
// replaces the version's stored chunk set in one transaction.
type IndexingService struct {
	versions VersionRepositoryInterface
	txRunner TxRunner
	client   EmbeddingClient
	chunker  *Chunker
	cfg      IndexingConfig
	log      *logger.Logger
}

// NewIndexingService creates a new IndexingService instance. A nil client
// stores chunks without embeddings.
func NewIndexingService(
	versions VersionRepositoryInterface,
	txRunner TxRunner,
	client EmbeddingClient,
	chunker *Chunker,
	cfg IndexingConfig,
	log *logger.Logger,
) *IndexingService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIndexingConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if chunker == nil {
		chunker = NewChunker(DefaultChunkConfig(), nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &IndexingService{
		versions: versions,
		txRunner: txRunner,
		client:   client,
		chunker:  chunker,
		cfg:      cfg,
		log:      log,
	}
}

// IndexVersion regenerates the chunks of a version. On any embedding
// failure the previous chunk set is left untouched. Running it twice
// yields the same chunk set.
func (s *IndexingService) IndexVersion(ctx context.Context, versionID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexingService.IndexVersion", telemetry.SpanAttributes{
		VersionID: versionID,
		Operation: "index",
	})
	defer span.End()

	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return err
	}

	textChunks := s.chunker.Chunk(version.Content)
	embeddings, err := s.embedAll(ctx, textChunks)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(textChunks))
	for i, tc := range textChunks {
		chunks[i] = domain.Chunk{
			VersionID:  version.ID,
			ChunkIndex: i,
			Chapter:    tc.Chapter,
			StartChar:  tc.StartChar,
			EndChar:    tc.EndChar,
			Text:       tc.Text,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Chunks().ReplaceChunks(ctx, version.ID, chunks)
	})
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to replace chunks: %w", err)
	}

	metrics.ChunksIndexed.Add(float64(len(chunks)))
	s.log.Info("version indexed", "version_id", version.ID, "manuscript_id", version.ManuscriptID, "chunks", len(chunks))
	return nil
}

func (s *IndexingService) embedAll(ctx context.Context, chunks []TextChunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	if s.client == nil || len(chunks) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		g.Go(func() error {
			vecs, err := callWithRetry(gctx, s.cfg.Retry, "embed", func(ctx context.Context) ([][]float32, error) {
				return s.client.GenerateEmbeddings(ctx, texts)
			})
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedding batch %d: got %d vectors for %d texts", start/s.cfg.BatchSize, len(vecs), len(texts))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

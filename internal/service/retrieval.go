package service

import (
	"context"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSearchRepository finds the chunks of a version nearest to a vector.
type ChunkSearchRepository interface {
	NearestChunks(ctx context.Context, versionID string, embedding []float32, k int) ([]domain.ScoredChunk, error)
}

// ChunkRetriever returns the chunks of a version most relevant to a query.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, versionID, query string, k int) ([]domain.ScoredChunk, error)
}

// RetrievalService embeds the query and runs a nearest-neighbour search
// over the chunks of a single version.
type RetrievalService struct {
	client EmbeddingClient
	chunks ChunkSearchRepository
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(client EmbeddingClient, chunks ChunkSearchRepository) *RetrievalService {
	return &RetrievalService{client: client, chunks: chunks}
}

func (s *RetrievalService) Retrieve(ctx context.Context, versionID, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || query == "" {
		return []domain.ScoredChunk{}, nil
	}

	embedding, err := s.client.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	return s.chunks.NearestChunks(ctx, versionID, embedding, k)
}

// NoOpRetriever is used when no embedding provider is configured.
type NoOpRetriever struct{}

func (NoOpRetriever) Retrieve(ctx context.Context, versionID, query string, k int) ([]domain.ScoredChunk, error) {
	return []domain.ScoredChunk{}, nil
}

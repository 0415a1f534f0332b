//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

func testEmbedding(hot int) []float32 {
	v := make([]float32, 1536)
	v[hot] = 1
	return v
}

func TestChunkRepository_ReplaceAndSearch(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewChunkRepository(pool)
	_, v := setupManuscript(ctx, t, pool, "Alpha. Beta. Gamma.")
	chapter := 1

	require.NoError(t, repo.ReplaceChunks(ctx, v.ID, []domain.Chunk{
		{ChunkIndex: 0, Chapter: &chapter, StartChar: 0, EndChar: 7, Text: "Alpha.", Embedding: testEmbedding(0)},
		{ChunkIndex: 1, StartChar: 7, EndChar: 13, Text: "Beta.", Embedding: testEmbedding(1)},
		{ChunkIndex: 2, StartChar: 13, EndChar: 19, Text: "Gamma."},
	}))

	chunks, err := repo.ListByVersion(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.NotNil(t, chunks[0].Chapter)
	assert.Equal(t, 1, *chunks[0].Chapter)
	assert.Nil(t, chunks[1].Chapter)

	nearest, err := repo.NearestChunks(ctx, v.ID, testEmbedding(1), 5)
	require.NoError(t, err)
	require.Len(t, nearest, 2, "chunks without embeddings are not searchable")
	assert.Equal(t, "Beta.", nearest[0].Text)
	assert.Less(t, nearest[0].Distance, nearest[1].Distance)

	require.NoError(t, repo.ReplaceChunks(ctx, v.ID, []domain.Chunk{
		{ChunkIndex: 0, StartChar: 0, EndChar: 19, Text: "Alpha. Beta. Gamma."},
	}))
	chunks, err = repo.ListByVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

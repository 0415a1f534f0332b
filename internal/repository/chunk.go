package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

// ChunkRepository handles persistence and similarity search of version chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a version and inserts new ones.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, versionID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE version_id = $1`, versionID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks (version_id, chunk_index, chapter, start_char, end_char, text, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			versionID, c.ChunkIndex, c.Chapter, c.StartChar, c.EndChar, c.Text, embedding, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ChunkRepository) ListByVersion(ctx context.Context, versionID string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, version_id, chunk_index, chapter, start_char, end_char, text, created_at
		 FROM chunks WHERE version_id = $1 ORDER BY chunk_index ASC`,
		versionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.VersionID, &c.ChunkIndex, &c.Chapter, &c.StartChar, &c.EndChar, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// NearestChunks returns up to k embedded chunks of the version ordered by
// cosine distance to embedding.
func (r *ChunkRepository) NearestChunks(ctx context.Context, versionID string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, version_id, chunk_index, chapter, start_char, end_char, text, created_at,
		        embedding <=> $1 AS distance
		 FROM chunks
		 WHERE version_id = $2 AND embedding IS NOT NULL
		 ORDER BY distance ASC, chunk_index ASC
		 LIMIT $3`,
		pgvector.NewVector(embedding), versionID, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, k)
	for rows.Next() {
		var sc domain.ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.VersionID, &sc.ChunkIndex, &sc.Chapter, &sc.StartChar, &sc.EndChar, &sc.Text, &sc.CreatedAt, &sc.Distance); err != nil {
			return nil, err
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

type VersionRepository struct {
	db dbtx
}

func NewVersionRepository(pool *pgxpool.Pool) *VersionRepository {
	return &VersionRepository{db: pool}
}

func NewVersionRepositoryWithTx(tx pgx.Tx) *VersionRepository {
	return &VersionRepository{db: tx}
}

func (r *VersionRepository) Create(ctx context.Context, v *domain.Version) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO manuscript_versions (id, manuscript_id, tag, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.ManuscriptID, v.Tag, v.Content, v.CreatedAt,
	)
	return err
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*domain.Version, error) {
	var v domain.Version
	err := r.db.QueryRow(ctx,
		`SELECT id, manuscript_id, tag, content, created_at
		 FROM manuscript_versions WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.ManuscriptID, &v.Tag, &v.Content, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListByManuscript returns versions in creation order.
func (r *VersionRepository) ListByManuscript(ctx context.Context, manuscriptID string) ([]*domain.Version, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, manuscript_id, tag, content, created_at
		 FROM manuscript_versions WHERE manuscript_id = $1
		 ORDER BY created_at ASC, length(tag) ASC, tag ASC`,
		manuscriptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*domain.Version
	for rows.Next() {
		var v domain.Version
		if err := rows.Scan(&v.ID, &v.ManuscriptID, &v.Tag, &v.Content, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

func (r *VersionRepository) CountByManuscript(ctx context.Context, manuscriptID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM manuscript_versions WHERE manuscript_id = $1`,
		manuscriptID,
	).Scan(&n)
	return n, err
}

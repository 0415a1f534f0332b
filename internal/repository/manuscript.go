package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/pagination"
	"github.com/cloo-solutions/inkwell/internal/service"
)

const manuscriptColumns = `id, title, author, current_version_id, created_at, updated_at`

type ManuscriptRepository struct {
	db dbtx
}

func NewManuscriptRepository(pool *pgxpool.Pool) *ManuscriptRepository {
	return &ManuscriptRepository{db: pool}
}

func NewManuscriptRepositoryWithTx(tx pgx.Tx) *ManuscriptRepository {
	return &ManuscriptRepository{db: tx}
}

func (r *ManuscriptRepository) Create(ctx context.Context, m *domain.Manuscript) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO manuscripts (id, title, author, current_version_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Title, nullableString(m.Author), nullableString(m.CurrentVersionID), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *ManuscriptRepository) GetByID(ctx context.Context, id string) (*domain.Manuscript, error) {
	return r.get(ctx, `SELECT `+manuscriptColumns+` FROM manuscripts WHERE id = $1`, id)
}

func (r *ManuscriptRepository) GetForUpdate(ctx context.Context, id string) (*domain.Manuscript, error) {
	return r.get(ctx, `SELECT `+manuscriptColumns+` FROM manuscripts WHERE id = $1 FOR UPDATE`, id)
}

func (r *ManuscriptRepository) get(ctx context.Context, query, id string) (*domain.Manuscript, error) {
	m, err := scanManuscript(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrManuscriptNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *ManuscriptRepository) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.ManuscriptPageResult, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+manuscriptColumns+`
			 FROM manuscripts
			 WHERE (updated_at, id) < ($1, $2)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+manuscriptColumns+`
			 FROM manuscripts
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Manuscript
	for rows.Next() {
		m, err := scanManuscript(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &service.ManuscriptPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *ManuscriptRepository) SetCurrentVersion(ctx context.Context, id, expected, next string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE manuscripts SET current_version_id = $1, updated_at = $2
		 WHERE id = $3 AND current_version_id IS NOT DISTINCT FROM $4`,
		next, time.Now().UTC(), id, nullableString(expected),
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM manuscripts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrManuscriptNotFound
	}
	return domain.ErrCurrentVersionMoved
}

func (r *ManuscriptRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM manuscripts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrManuscriptNotFound
	}
	return nil
}

func scanManuscript(row pgx.Row) (*domain.Manuscript, error) {
	var m domain.Manuscript
	var author, current *string
	if err := row.Scan(&m.ID, &m.Title, &author, &current, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Author = derefString(author)
	m.CurrentVersionID = derefString(current)
	return &m, nil
}

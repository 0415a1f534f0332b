package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

type StylePrefRepository struct {
	db dbtx
}

func NewStylePrefRepository(pool *pgxpool.Pool) *StylePrefRepository {
	return &StylePrefRepository{db: pool}
}

func NewStylePrefRepositoryWithTx(tx pgx.Tx) *StylePrefRepository {
	return &StylePrefRepository{db: tx}
}

func (r *StylePrefRepository) ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.StylePref, error) {
	rows, err := r.db.Query(ctx,
		`SELECT manuscript_id, key, value FROM style_prefs WHERE manuscript_id = $1 ORDER BY key ASC`,
		manuscriptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := make([]domain.StylePref, 0)
	for rows.Next() {
		var p domain.StylePref
		if err := rows.Scan(&p.ManuscriptID, &p.Key, &p.Value); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// Replace swaps the full preference set. Callers that need atomicity with
// other writes should use the transaction-bound repository.
func (r *StylePrefRepository) Replace(ctx context.Context, manuscriptID string, prefs map[string]string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM style_prefs WHERE manuscript_id = $1`, manuscriptID); err != nil {
		return err
	}
	for k, v := range prefs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO style_prefs (manuscript_id, key, value) VALUES ($1, $2, $3)`,
			manuscriptID, k, v,
		); err != nil {
			return err
		}
	}
	return nil
}

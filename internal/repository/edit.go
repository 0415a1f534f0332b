package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

const uniqueViolation = "23505"

// EditRepository persists edit sessions, their options and applied edits.
type EditRepository struct {
	db dbtx
}

func NewEditRepository(pool *pgxpool.Pool) *EditRepository {
	return &EditRepository{db: pool}
}

func NewEditRepositoryWithTx(tx pgx.Tx) *EditRepository {
	return &EditRepository{db: tx}
}

func (r *EditRepository) CreateSession(ctx context.Context, s *domain.EditSession) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO edit_sessions (id, manuscript_id, base_version_id, instruction, target_start, target_end, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.ManuscriptID, s.BaseVersionID, s.Instruction, s.TargetStart, s.TargetEnd, s.CreatedAt,
	)
	return err
}

func (r *EditRepository) GetSession(ctx context.Context, id string) (*domain.EditSession, error) {
	var s domain.EditSession
	err := r.db.QueryRow(ctx,
		`SELECT id, manuscript_id, base_version_id, instruction, target_start, target_end, created_at
		 FROM edit_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.ManuscriptID, &s.BaseVersionID, &s.Instruction, &s.TargetStart, &s.TargetEnd, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEditSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *EditRepository) CreateOption(ctx context.Context, o *domain.EditOption) error {
	ops, err := domain.EncodeDiffOperations(o.Operations)
	if err != nil {
		return fmt.Errorf("failed to encode diff operations: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO edit_options (id, session_id, label, severity, before_text, after_text, diff_operations, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.SessionID, o.Label, o.Severity, o.BeforeText, o.AfterText, ops, o.Position,
	)
	return err
}

func (r *EditRepository) GetOption(ctx context.Context, id string) (*domain.EditOption, error) {
	o, err := scanOption(r.db.QueryRow(ctx,
		`SELECT id, session_id, label, severity, before_text, after_text, diff_operations, position
		 FROM edit_options WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEditOptionNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *EditRepository) ListOptionsBySession(ctx context.Context, sessionID string) ([]*domain.EditOption, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, label, severity, before_text, after_text, diff_operations, position
		 FROM edit_options WHERE session_id = $1 ORDER BY position ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []*domain.EditOption
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// CreateAppliedEdit records an applied edit. A second record for the same
// session violates the unique constraint and maps to ErrSessionAlreadyApplied.
func (r *EditRepository) CreateAppliedEdit(ctx context.Context, a *domain.AppliedEdit) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO applied_edits (id, session_id, chosen_option_id, from_version_id, to_version_id, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.SessionID, a.ChosenOptionID, a.FromVersionID, a.ToVersionID, a.AppliedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrSessionAlreadyApplied
	}
	return err
}

// GetAppliedEditBySession returns nil, nil when the session has not been applied.
func (r *EditRepository) GetAppliedEditBySession(ctx context.Context, sessionID string) (*domain.AppliedEdit, error) {
	var a domain.AppliedEdit
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, chosen_option_id, from_version_id, to_version_id, applied_at
		 FROM applied_edits WHERE session_id = $1`,
		sessionID,
	).Scan(&a.ID, &a.SessionID, &a.ChosenOptionID, &a.FromVersionID, &a.ToVersionID, &a.AppliedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func scanOption(row pgx.Row) (*domain.EditOption, error) {
	var o domain.EditOption
	var ops []byte
	if err := row.Scan(&o.ID, &o.SessionID, &o.Label, &o.Severity, &o.BeforeText, &o.AfterText, &ops, &o.Position); err != nil {
		return nil, err
	}
	decoded, err := domain.DecodeDiffOperations(ops)
	if err != nil {
		return nil, fmt.Errorf("option %s: %w", o.ID, err)
	}
	o.Operations = decoded
	return &o, nil
}

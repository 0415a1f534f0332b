package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/service"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	defaultTxAttempts = 3
)

// TxRunner runs version transitions and other multi-table writes in one
// transaction. Transactions aborted by a serialization failure or deadlock
// are retried from scratch, so fn must not keep side effects outside tx.
type TxRunner struct {
	pool     *pgxpool.Pool
	attempts uint64
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool, attempts: defaultTxAttempts}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.attempts-1), ctx)

	return backoff.Retry(func() error {
		err := r.runOnce(ctx, fn)
		if err != nil && !isTxRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(repos service.TxRepositories) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&txRepos{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isTxRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Manuscripts() service.ManuscriptRepositoryInterface {
	return NewManuscriptRepositoryWithTx(r.tx)
}

func (r *txRepos) Versions() service.VersionRepositoryInterface {
	return NewVersionRepositoryWithTx(r.tx)
}

func (r *txRepos) Edits() service.EditRepositoryInterface {
	return NewEditRepositoryWithTx(r.tx)
}

func (r *txRepos) Chunks() service.ChunkRepositoryInterface {
	return NewChunkRepositoryWithTx(r.tx)
}

func (r *txRepos) IndexJobs() service.IndexJobRepositoryInterface {
	return NewIndexJobRepositoryWithTx(r.tx)
}

func (r *txRepos) StylePrefs() service.StylePrefRepositoryInterface {
	return NewStylePrefRepositoryWithTx(r.tx)
}

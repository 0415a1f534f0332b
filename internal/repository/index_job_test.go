//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

func TestIndexJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewIndexJobRepository(pool)
	_, v := setupManuscript(ctx, t, pool, "x")

	job := domain.NewIndexJob(uuid.NewString(), v.ID, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.IndexJobStatusProcessing, claimed[0].Status)

	again, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed jobs are not handed out twice")

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, "provider down"))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexJobStatusFailed, got.Status)
	assert.Equal(t, int32(1), got.Retries)
	assert.Equal(t, "provider down", got.Error)
	assert.NotNil(t, got.ProcessedAt)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), domain.IndexJobStatusCompleted, ""), domain.ErrIndexJobNotFound)
}

func TestIndexJobRepository_ReclaimsExpiredClaims(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewIndexJobRepository(pool)
	_, v := setupManuscript(ctx, t, pool, "x")

	job := domain.NewIndexJob(uuid.NewString(), v.ID, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, job))

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NotNil(t, claimed[0].ClaimedAt)

	// A live claim is left alone.
	again, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	// The worker holding the claim died an hour ago.
	_, err = pool.Exec(ctx, `UPDATE index_jobs SET claimed_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, job.ID)
	require.NoError(t, err)

	reclaimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, job.ID, reclaimed[0].ID)
	assert.Equal(t, domain.IndexJobStatusProcessing, reclaimed[0].Status)
	assert.Equal(t, int32(1), reclaimed[0].Retries)
	assert.Equal(t, "claim expired", reclaimed[0].Error)
	assert.WithinDuration(t, time.Now(), *reclaimed[0].ClaimedAt, time.Minute)
}

func TestIndexJobRepository_SetLease(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewIndexJobRepository(pool)
	repo.SetLease(50 * time.Millisecond)
	_, v := setupManuscript(ctx, t, pool, "x")

	require.NoError(t, repo.Create(ctx, domain.NewIndexJob(uuid.NewString(), v.ID, time.Now().UTC())))
	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	assert.Eventually(t, func() bool {
		jobs, err := repo.ClaimPending(ctx, 10)
		return err == nil && len(jobs) == 1
	}, 5*time.Second, 100*time.Millisecond)
}

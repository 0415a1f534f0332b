//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/pagination"
	"github.com/cloo-solutions/inkwell/internal/service"
	"github.com/cloo-solutions/inkwell/internal/testutil"
)

func newTestPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

// setupManuscript creates a manuscript with v0 pointing at content.
func setupManuscript(ctx context.Context, t *testing.T, pool *pgxpool.Pool, content string) (*domain.Manuscript, *domain.Version) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	m := domain.NewManuscript(uuid.NewString(), "Test Manuscript", "", now)
	v := domain.NewVersion(uuid.NewString(), m.ID, domain.VersionTag(0), content, now)

	err := NewTxRunner(pool).WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Manuscripts().Create(ctx, m); err != nil {
			return err
		}
		if err := repos.Versions().Create(ctx, v); err != nil {
			return err
		}
		return repos.Manuscripts().SetCurrentVersion(ctx, m.ID, "", v.ID)
	})
	require.NoError(t, err)
	m.CurrentVersionID = v.ID
	return m, v
}

func TestManuscriptRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewManuscriptRepository(pool)

	m, v := setupManuscript(ctx, t, pool, "Once upon a time.")

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, got.Title)
	assert.Equal(t, "", got.Author)
	assert.Equal(t, v.ID, got.CurrentVersionID)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrManuscriptNotFound)
}

func TestManuscriptRepository_SetCurrentVersion_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewManuscriptRepository(pool)
	versions := NewVersionRepository(pool)

	m, v0 := setupManuscript(ctx, t, pool, "one")
	v1 := domain.NewVersion(uuid.NewString(), m.ID, domain.VersionTag(1), "two", time.Now().UTC())
	require.NoError(t, versions.Create(ctx, v1))

	err := repo.SetCurrentVersion(ctx, m.ID, v1.ID, v0.ID)
	assert.ErrorIs(t, err, domain.ErrCurrentVersionMoved)

	require.NoError(t, repo.SetCurrentVersion(ctx, m.ID, v0.ID, v1.ID))
	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, got.CurrentVersionID)

	err = repo.SetCurrentVersion(ctx, uuid.NewString(), "", v1.ID)
	assert.ErrorIs(t, err, domain.ErrManuscriptNotFound)
}

func TestManuscriptRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewManuscriptRepository(pool)

	for range 5 {
		setupManuscript(ctx, t, pool, "x")
	}

	first, err := repo.List(ctx, nil, 3)
	require.NoError(t, err)
	assert.Len(t, first.Items, 3)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	cursor, err := pagination.DecodeCursor(first.NextCursor)
	require.NoError(t, err)
	second, err := repo.List(ctx, cursor, 3)
	require.NoError(t, err)
	assert.Len(t, second.Items, 2)
	assert.False(t, second.HasMore)

	seen := map[string]bool{}
	for _, m := range append(first.Items, second.Items...) {
		assert.False(t, seen[m.ID], "duplicate across pages")
		seen[m.ID] = true
	}
}

func TestManuscriptRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewManuscriptRepository(pool)

	m, v := setupManuscript(ctx, t, pool, "x")

	require.NoError(t, repo.Delete(ctx, m.ID))
	_, err := NewVersionRepository(pool).GetByID(ctx, v.ID)
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, m.ID), domain.ErrManuscriptNotFound)
}

func TestVersionRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewVersionRepository(pool)

	m, v0 := setupManuscript(ctx, t, pool, "one")
	v1 := domain.NewVersion(uuid.NewString(), m.ID, domain.VersionTag(1), "two", time.Now().UTC().Add(time.Second))
	require.NoError(t, repo.Create(ctx, v1))

	versions, err := repo.ListByManuscript(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v0.ID, versions[0].ID)
	assert.Equal(t, v1.ID, versions[1].ID)

	n, err := repo.CountByManuscript(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dup := domain.NewVersion(uuid.NewString(), m.ID, domain.VersionTag(1), "dup", time.Now().UTC())
	assert.Error(t, repo.Create(ctx, dup), "tags are unique per manuscript")
}

func TestStylePrefRepository_Replace(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(ctx, t)
	repo := NewStylePrefRepository(pool)
	m, _ := setupManuscript(ctx, t, pool, "x")

	require.NoError(t, repo.Replace(ctx, m.ID, map[string]string{"tone": "wry", "pov": "first"}))
	require.NoError(t, repo.Replace(ctx, m.ID, map[string]string{"tone": "dry"}))

	prefs, err := repo.ListByManuscript(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.StylePref{{ManuscriptID: m.ID, Key: "tone", Value: "dry"}}, prefs)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

func TestMemStore_WithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	err := store.WithTx(ctx, func(repos TxRepositories) error {
		require.NoError(t, repos.Manuscripts().Create(ctx, &domain.Manuscript{ID: "m1", Title: "t"}))
		return errors.New("boom")
	})

	assert.Error(t, err)
	_, err = store.repos().Manuscripts().GetByID(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrManuscriptNotFound)
}

func TestMemStore_WithTx_Commits(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	err := store.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Manuscripts().Create(ctx, &domain.Manuscript{ID: "m1", Title: "t"})
	})

	require.NoError(t, err)
	m, err := store.repos().Manuscripts().GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "t", m.Title)
}

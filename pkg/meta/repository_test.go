package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	return NewRepository(db)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "demo", "0xabc0000000000000000000000000000000000001"))

	got, err := repo.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", got.Address)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "demo", "0xabc0000000000000000000000000000000000001"))

	err := repo.Create(ctx, "demo", "0xdef0000000000000000000000000000000000002")
	assert.ErrorIs(t, err, ErrRepoExists)

	// 旧地址必须原样保留
	got, err := repo.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", got.Address)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "beta", "0xbbb0000000000000000000000000000000000002"))
	require.NoError(t, repo.Create(ctx, "alpha", "0xaaa0000000000000000000000000000000000001"))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)
}

package accounts

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_InsertFind(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	a, err := r.Insert(ctx, "alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.Verified)
	assert.Equal(t, int64(1), a.Version)

	_, err = r.Insert(ctx, "alice@example.com", "other")
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := r.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = r.FindByEmail(ctx, "ALICE@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	_, err := r.Insert(ctx, "a@b.c", "hash")
	require.NoError(t, err)

	got, err := r.FindByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	got.Verified = true

	again, err := r.FindByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.False(t, again.Verified)
}

func TestMemoryRepository_PersistVersioned(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	_, err := r.Insert(ctx, "a@b.c", "hash")
	require.NoError(t, err)

	first, _ := r.FindByEmail(ctx, "a@b.c")
	second, _ := r.FindByEmail(ctx, "a@b.c")

	tok := "t1"
	first.RefreshToken = &tok
	require.NoError(t, r.Persist(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Verified = true
	assert.ErrorIs(t, r.Persist(ctx, second), common.ErrVersionConflict)

	stored, _ := r.FindByEmail(ctx, "a@b.c")
	assert.False(t, stored.Verified)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "t1", *stored.RefreshToken)
}

func TestMemoryRepository_PersistClearsEmptyToken(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a, _ := r.Insert(ctx, "a@b.c", "hash")

	empty := ""
	a.RefreshToken = &empty
	require.NoError(t, r.Persist(ctx, a))

	stored, _ := r.FindByEmail(ctx, "a@b.c")
	assert.Nil(t, stored.RefreshToken)
}

func TestMemoryRepository_PersistUnknown(t *testing.T) {
	r := NewMemoryRepository()
	a, _ := NewMemoryRepository().Insert(context.Background(), "x@y.z", "h")
	assert.ErrorIs(t, r.Persist(context.Background(), a), common.ErrVersionConflict)
}

package out_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	readeradapter "readingroom/internal/modules/reader/adapter/out"
	"readingroom/internal/modules/reader/domain"
)

func TestSQLitePositionStoreRoundTrip(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "readingroom.db")
	store, err := readeradapter.NewSQLitePositionStore(dbPath)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, domain.PositionKey("42"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, domain.PositionKey("42"), "1200"))
	require.NoError(t, store.Set(ctx, domain.PositionKey("42"), "1350.5"))
	value, ok, err := store.Get(ctx, domain.PositionKey("42"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1350.5", value)

	reopened, err := readeradapter.NewSQLitePositionStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()
	value, ok, err = reopened.Get(ctx, domain.PositionKey("42"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1350.5", value)
}

package cached

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTieredCache(t *testing.T) (Cache, *Memory, *SQLite) {
	t.Helper()
	l1 := NewMemory(nil)
	l2, err := NewSQLite(filepath.Join(t.TempDir(), "l2.sqlite"))
	require.NoError(t, err)
	c := NewComposite(l1, l2)
	t.Cleanup(func() { c.Close() })
	return c, l1, l2
}

func TestCompositeWritesThrough(t *testing.T) {
	ctx := context.Background()
	c, l1, l2 := newTieredCache(t)

	assert.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	ok, str, err := Get[string](ctx, l1, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", str)

	ok, str, err = Get[string](ctx, l2, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", str)
}

func TestCompositeFirstHitWins(t *testing.T) {
	ctx := context.Background()
	c, l1, l2 := newTieredCache(t)

	// Only the durable tier holds the key.
	assert.NoError(t, l2.Set(ctx, "key", "from-l2", time.Minute))

	ok, str, err := Get[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-l2", str)

	// A fresher value in L1 shadows L2.
	assert.NoError(t, l1.Set(ctx, "key", "from-l1", time.Minute))
	ok, str, err = Get[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-l1", str)
}

func TestCompositeRemoveFansOut(t *testing.T) {
	ctx := context.Background()
	c, l1, l2 := newTieredCache(t)

	assert.NoError(t, c.Set(ctx, "key", "value", time.Minute))
	found, err := c.Remove(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)

	found, _, err = l1.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
	found, _, err = l2.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCompositeClearSkipsUnsupportedTiers(t *testing.T) {
	ctx := context.Background()
	c, _, l2 := newTieredCache(t)

	assert.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	// The bag tier cannot clear; the durable tier still must.
	assert.NoError(t, c.Clear(ctx))
	found, _, err := l2.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCompositeRequiresCaches(t *testing.T) {
	assert.Panics(t, func() { NewComposite() })
}

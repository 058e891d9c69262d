package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Service {
	t.Helper()

	bc, err := NewBoltCache(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bc.Close() })

	return map[string]Service{
		"memory": NewMemoryCache(),
		"bolt":   bc,
	}
}

func TestService_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, svc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrCacheMiss)

			require.NoError(t, svc.MSet(ctx, map[string]string{"a": "1", "b": "2"}, 0))
			v, err := svc.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "1", v)

			require.NoError(t, svc.Delete(ctx, "a", "b", "never-set"))
			_, err = svc.Get(ctx, "b")
			assert.ErrorIs(t, err, ErrCacheMiss)
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	now := time.Unix(1_700_000_000, 0)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	_, err := mc.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestBoltCache_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	bc, err := NewBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, bc.Set(ctx, "ww_token", "tok", 0))
	require.NoError(t, bc.Close())

	bc, err = NewBoltCache(path)
	require.NoError(t, err)
	defer bc.Close()

	v, err := bc.Get(ctx, "ww_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestMemoryCache_Closed(t *testing.T) {
	mc := NewMemoryCache()
	require.NoError(t, mc.Close())
	_, err := mc.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

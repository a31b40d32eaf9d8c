package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, backend string) Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(Config{
		Backend:    backend,
		SQLitePath: filepath.Join(dir, "cache.db"),
		BadgerPath: filepath.Join(dir, "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	for _, backend := range []string{"sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			store := openTestStore(t, backend)
			ctx := context.Background()

			_, ok, err := store.Get(ctx, KindTextEmbedding, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			key := Key([]byte("hello"))
			require.NoError(t, store.Put(ctx, KindTextEmbedding, key, []byte(`[0.1,0.2]`)))

			value, ok, err := store.Get(ctx, KindTextEmbedding, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte(`[0.1,0.2]`), value)

			// Kinds are separate namespaces.
			_, ok, err = store.Get(ctx, KindImageLabels, key)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreOverwriteLastWriterWins(t *testing.T) {
	for _, backend := range []string{"sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			store := openTestStore(t, backend)
			ctx := context.Background()

			key := Key([]byte("input"))
			require.NoError(t, store.Put(ctx, KindImageLabels, key, []byte("first")))
			require.NoError(t, store.Put(ctx, KindImageLabels, key, []byte("second")))

			value, ok, err := store.Get(ctx, KindImageLabels, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("second"), value)
		})
	}
}

func TestNewStoreUnknownBackend(t *testing.T) {
	_, err := NewStore(Config{Backend: "redis"})
	require.Error(t, err)
}

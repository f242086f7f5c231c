package kv

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract shared by every backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "usage:nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "usage:1", []byte(`{"requests_today":1}`)))

		v, err := s.Get(ctx, "usage:1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"requests_today":1}`, string(v))
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "lang:1", []byte(`{"language_code":"en"}`)))
		require.NoError(t, s.Put(ctx, "lang:1", []byte(`{"language_code":"ru"}`)))

		v, err := s.Get(ctx, "lang:1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"language_code":"ru"}`, string(v))
	})

	t.Run("cas on absent key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ok, err := s.CompareAndSwap(ctx, "usage:2", nil, []byte(`{"n":1}`))
		require.NoError(t, err)
		assert.True(t, ok)

		// second insert-if-absent loses
		ok, err = s.CompareAndSwap(ctx, "usage:2", nil, []byte(`{"n":2}`))
		require.NoError(t, err)
		assert.False(t, ok)

		v, err := s.Get(ctx, "usage:2")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(v))
	})

	t.Run("cas with matching and stale prev", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "usage:3", []byte(`{"n":1}`)))

		ok, err := s.CompareAndSwap(ctx, "usage:3", []byte(`{"n":1}`), []byte(`{"n":2}`))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.CompareAndSwap(ctx, "usage:3", []byte(`{"n":1}`), []byte(`{"n":3}`))
		require.NoError(t, err)
		assert.False(t, ok)

		v, err := s.Get(ctx, "usage:3")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":2}`, string(v))
	})

	t.Run("cas with prev on missing key fails", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.CompareAndSwap(context.Background(), "usage:4", []byte(`{"n":1}`), []byte(`{"n":2}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys by prefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "usage:a", []byte(`{}`)))
		require.NoError(t, s.Put(ctx, "usage:b", []byte(`{}`)))
		require.NoError(t, s.Put(ctx, "lang:a", []byte(`{}`)))

		keys, err := s.Keys(ctx, "usage:")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"usage:a", "usage:b"}, keys)
	})

	t.Run("concurrent cas increments are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "counter", []byte(`0`)))

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					cur, err := s.Get(ctx, "counter")
					if err != nil {
						return
					}
					next := []byte{cur[0] + 1}
					ok, err := s.CompareAndSwap(ctx, "counter", cur, next)
					if err != nil || ok {
						return
					}
				}
			}()
		}
		wg.Wait()

		v, err := s.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "8", string(v))
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "quill.json"))
		require.NoError(t, err)
		return s
	})
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quill.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "usage:42", []byte(`{"requests_today":3}`)))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "usage:42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"requests_today":3}`, string(v))
}

func TestFileStore_RejectsNonJSON(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "quill.json"))
	require.NoError(t, err)
	assert.Error(t, s.Put(context.Background(), "k", []byte("not json")))
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "quill.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisStore(client)
	})
}

func TestRedisStore_KeysAreNamespaced(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStore(client)
	require.NoError(t, s.Put(context.Background(), "usage:7", []byte(`{}`)))
	assert.True(t, mr.Exists("quill:kv:usage:7"))
}

func TestInstrumentedStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return Instrument(NewMemoryStore(), "memory") })
}

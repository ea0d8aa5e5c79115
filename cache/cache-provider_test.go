package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	hour := time.Now().Add(time.Hour)

	t.Run("missing", func(t *testing.T) {
		ok, err := s.Contains(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set get remove", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "/teams:application/json", []byte("[]"), hour))
		ok, err := s.Contains(ctx, "/teams:application/json")
		require.NoError(t, err)
		assert.True(t, ok)
		value, ok, err := s.Get(ctx, "/teams:application/json")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "[]", string(value))

		require.NoError(t, s.Remove(ctx, "/teams:application/json"))
		ok, err = s.Contains(ctx, "/teams:application/json")
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, s.Remove(ctx, "/teams:application/json"))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", []byte("first"), hour))
		require.NoError(t, s.Set(ctx, "k", []byte("second"), hour))
		value, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", string(value))
	})

	t.Run("expired", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "expired", []byte("old"), time.Now().Add(-time.Second)))
		ok, err := s.Contains(ctx, "expired")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = s.Get(ctx, "expired")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expires", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Now().Add(50*time.Millisecond)))
		ok, err := s.Contains(ctx, "short")
		require.NoError(t, err)
		assert.True(t, ok)
		time.Sleep(100 * time.Millisecond)
		_, ok, err = s.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, "shared", []byte("same"), hour))
				_, _, err := s.Get(ctx, "shared")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		value, ok, err := s.Get(ctx, "shared")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "same", string(value))
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreUsesClock(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2013, 1, 25, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), now.Add(time.Minute)))
	ok, _ := m.Contains(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = m.Contains(ctx, "k")
	assert.False(t, ok, "entry must not be visible at its expiration instant")
	assert.Equal(t, 0, m.Len(), "expired entry purged on read")
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, time.Now().Add(time.Hour)))
	value[0] = 'x'
	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("abc"), time.Now().Add(time.Hour)))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	got[0] = 'x'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreDeleteExpired(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "old", []byte("v"), time.Now().Add(-time.Minute)))
	require.NoError(t, m.Set(ctx, "new", []byte("v"), time.Now().Add(time.Minute)))
	n, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.Len())
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, newSQLiteStore(t))
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Now().Add(time.Hour)))
	ok, err := s.Contains(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStoreDeleteExpired(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "old", []byte("v"), time.Now().Add(-time.Minute)))
	require.NoError(t, s.Set(ctx, "new", []byte("v"), time.Now().Add(time.Minute)))
	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	ok, err := s.Contains(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("OUTPUTCACHE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OUTPUTCACHE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())
	testStore(t, NewRedisStore(client, "outputcache-test:"+t.Name()+":"))
}

func TestSweep(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Set(ctx, "old", []byte("v"), time.Now().Add(-time.Minute)))

	done := make(chan struct{})
	go func() {
		Sweep(ctx, m, 10*time.Millisecond, zerolog.Nop())
		close(done)
	}()
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sweep did not stop after cancel")
	}
}

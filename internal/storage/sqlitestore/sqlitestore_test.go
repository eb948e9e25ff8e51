package sqlitestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsession/internal/storage"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.db")
	s, err := New(path)
	require.NoError(t, err, "failed to open sqlite store")
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func Test_SqliteStore(t *testing.T) {
	t.Parallel()

	t.Run("set then get", func(t *testing.T) {
		s, _ := newStore(t)

		err := s.Set("access_token", "tok", storage.SessionOptions(time.Minute))
		require.NoError(t, err)

		got, ok := s.Get("access_token")
		require.True(t, ok)
		assert.Equal(t, "tok", got)
	})

	t.Run("upsert replaces value", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.Set("k", "old", storage.Options{}))
		require.NoError(t, s.Set("k", "new", storage.Options{Secure: true, SameSite: storage.SameSiteStrict}))

		got, ok := s.Get("k")
		require.True(t, ok)
		assert.Equal(t, "new", got)
	})

	t.Run("survives reopen", func(t *testing.T) {
		s, path := newStore(t)
		require.NoError(t, s.Set("refresh_token", "r-1", storage.SessionOptions(time.Hour)))
		require.NoError(t, s.Close())

		reopened, err := New(path)
		require.NoError(t, err)
		defer reopened.Close() // nolint:errcheck

		got, ok := reopened.Get("refresh_token")
		require.True(t, ok, "persisted entry should survive a restart")
		assert.Equal(t, "r-1", got)
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.Set("k", "v", storage.Options{TTL: time.Millisecond}))
		time.Sleep(5 * time.Millisecond)

		_, ok := s.Get("k")
		assert.False(t, ok)
	})

	t.Run("remove and clear", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.Set("a", "1", storage.Options{}))
		require.NoError(t, s.Set("b", "2", storage.Options{}))

		s.Remove("a")
		_, ok := s.Get("a")
		assert.False(t, ok)

		s.Clear()
		_, ok = s.Get("b")
		assert.False(t, ok)
	})

	t.Run("sweep drops expired rows", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.Set("short", "v", storage.Options{TTL: time.Millisecond}))
		require.NoError(t, s.Set("long", "v", storage.Options{TTL: time.Hour}))
		time.Sleep(5 * time.Millisecond)

		assert.Equal(t, 1, s.Sweep(), "exactly one row should be swept")

		_, ok := s.Get("long")
		assert.True(t, ok)
	})
}

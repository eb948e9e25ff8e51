package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsession/internal/storage"
	"github.com/voyago/tripsession/internal/testutil"
)

func Test_MemStore(t *testing.T) {
	t.Parallel()

	t.Run("set then get", func(t *testing.T) {
		s := New()

		err := s.Set("access_token", "value-1", storage.SessionOptions(time.Minute))
		require.NoError(t, err)

		got, ok := s.Get("access_token")
		require.True(t, ok, "entry should be present before expiry")
		assert.Equal(t, "value-1", got)
	})

	t.Run("missing key", func(t *testing.T) {
		s := New()

		_, ok := s.Get("nope")
		assert.False(t, ok)
	})

	t.Run("entry expires", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		s := NewWithClock(clock.Now)

		require.NoError(t, s.Set("k", "v", storage.Options{TTL: time.Minute}))

		clock.Advance(time.Minute + time.Second)

		_, ok := s.Get("k")
		assert.False(t, ok, "expired entry should be a miss")
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		s := NewWithClock(clock.Now)

		require.NoError(t, s.Set("k", "v", storage.Options{}))

		clock.Advance(100 * 24 * time.Hour)

		_, ok := s.Get("k")
		assert.True(t, ok)
	})

	t.Run("remove and clear", func(t *testing.T) {
		s := New()

		require.NoError(t, s.Set("a", "1", storage.Options{}))
		require.NoError(t, s.Set("b", "2", storage.Options{}))

		s.Remove("a")
		_, ok := s.Get("a")
		assert.False(t, ok, "removed entry should be gone")

		s.Clear()
		_, ok = s.Get("b")
		assert.False(t, ok, "clear should drop every entry")
	})

	t.Run("sweep drops only expired", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		s := NewWithClock(clock.Now)

		require.NoError(t, s.Set("short", "v", storage.Options{TTL: time.Minute}))
		require.NoError(t, s.Set("long", "v", storage.Options{TTL: time.Hour}))

		clock.Advance(2 * time.Minute)

		dropped := s.Sweep()
		assert.Equal(t, 1, dropped, "exactly one entry should expire")

		_, ok := s.Get("long")
		assert.True(t, ok, "unexpired entry should survive the sweep")
	})
}

package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsession/internal/storage/memstore"
	"github.com/voyago/tripsession/internal/testutil"
)

const identity = "a@b.com"

func newTracker(t *testing.T, cfg Config) (*Tracker, *testutil.Clock) {
	t.Helper()

	clock := testutil.NewClock(time.Now())
	cfg.Now = clock.Now

	store := memstore.NewWithClock(clock.Now)
	return New(cfg, store, nil), clock
}

func Test_Tracker(t *testing.T) {
	t.Parallel()

	t.Run("defaults applied", func(t *testing.T) {
		tr, _ := newTracker(t, Config{})

		require.Equal(t, 5, tr.maxAttempts)
		require.Equal(t, 15*time.Minute, tr.attemptWindow)
		require.Equal(t, 15*time.Minute, tr.lockoutDuration)
	})

	t.Run("locks after max attempts in window", func(t *testing.T) {
		tr, _ := newTracker(t, Config{})

		for i := 0; i < 4; i++ {
			tr.RecordFailedAttempt(identity)
			assert.False(t, tr.IsLockedOut(identity), "attempt %d should not lock yet", i+1)
		}

		tr.RecordFailedAttempt(identity)
		assert.True(t, tr.IsLockedOut(identity), "5th attempt should lock")

		status := tr.Status(identity)
		assert.True(t, status.IsLocked)
		assert.Equal(t, 5, status.Attempts)
		assert.Equal(t, 15*time.Minute, status.Remaining)
	})

	t.Run("attempts while locked are no-ops", func(t *testing.T) {
		tr, clock := newTracker(t, Config{})

		for i := 0; i < 5; i++ {
			tr.RecordFailedAttempt(identity)
		}
		require.True(t, tr.IsLockedOut(identity))

		clock.Advance(5 * time.Minute)
		before := tr.Status(identity)

		// A locked identity must not get its counter bumped nor the
		// lockout extended by more failures
		tr.RecordFailedAttempt(identity)

		after := tr.Status(identity)
		assert.Equal(t, before.Attempts, after.Attempts, "attempt count must not change while locked")
		assert.Equal(t, before.Remaining, after.Remaining, "lockout must not be extended while locked")
	})

	t.Run("lockout self-heals after duration", func(t *testing.T) {
		tr, clock := newTracker(t, Config{})

		for i := 0; i < 5; i++ {
			tr.RecordFailedAttempt(identity)
		}
		require.True(t, tr.IsLockedOut(identity))

		clock.Advance(15*time.Minute + time.Second)
		assert.False(t, tr.IsLockedOut(identity), "expired lockout should self-heal")

		// Next failure starts a fresh window
		tr.RecordFailedAttempt(identity)
		status := tr.Status(identity)
		assert.False(t, status.IsLocked)
		assert.Equal(t, 1, status.Attempts, "fresh window should start with count=1")
	})

	t.Run("window slides", func(t *testing.T) {
		tr, clock := newTracker(t, Config{})

		tr.RecordFailedAttempt(identity)
		tr.RecordFailedAttempt(identity)

		clock.Advance(16 * time.Minute)

		tr.RecordFailedAttempt(identity)
		status := tr.Status(identity)
		assert.Equal(t, 1, status.Attempts, "attempt outside the window should reset the count")
	})

	t.Run("identity is normalized", func(t *testing.T) {
		tr, _ := newTracker(t, Config{MaxAttempts: 2})

		tr.RecordFailedAttempt("  A@B.com ")
		tr.RecordFailedAttempt("a@b.COM")

		assert.True(t, tr.IsLockedOut("a@b.com"), "case and whitespace variants should count together")
	})

	t.Run("unlock resets identity", func(t *testing.T) {
		tr, _ := newTracker(t, Config{MaxAttempts: 2})

		tr.RecordFailedAttempt(identity)
		tr.RecordFailedAttempt(identity)
		require.True(t, tr.IsLockedOut(identity))

		tr.Unlock(identity)
		assert.False(t, tr.IsLockedOut(identity))
		assert.Equal(t, 0, tr.Status(identity).Attempts)
	})

	t.Run("clear all", func(t *testing.T) {
		tr, _ := newTracker(t, Config{MaxAttempts: 1})

		tr.RecordFailedAttempt("one@x.com")
		tr.RecordFailedAttempt("two@x.com")
		require.True(t, tr.IsLockedOut("one@x.com"))
		require.True(t, tr.IsLockedOut("two@x.com"))

		tr.ClearAll()
		assert.False(t, tr.IsLockedOut("one@x.com"))
		assert.False(t, tr.IsLockedOut("two@x.com"))
	})

	t.Run("status of unknown identity", func(t *testing.T) {
		tr, _ := newTracker(t, Config{})

		status := tr.Status("nobody@x.com")
		assert.False(t, status.IsLocked)
		assert.Zero(t, status.Attempts)
		assert.Zero(t, status.Remaining)
	})

	t.Run("lockout survives tracker restart via storage", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		store := memstore.NewWithClock(clock.Now)

		tr := New(Config{MaxAttempts: 2, Now: clock.Now}, store, nil)
		tr.RecordFailedAttempt(identity)
		tr.RecordFailedAttempt(identity)
		require.True(t, tr.IsLockedOut(identity))

		// Same storage, new tracker instance: lockout state is durable
		fresh := New(Config{MaxAttempts: 2, Now: clock.Now}, store, nil)
		assert.True(t, fresh.IsLockedOut(identity))
	})
}

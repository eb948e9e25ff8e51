package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/client"
	"github.com/voyago/tripsession/internal/lockout"
	"github.com/voyago/tripsession/internal/session"
	"github.com/voyago/tripsession/internal/storage/memstore"
	"github.com/voyago/tripsession/internal/testutil"
)

type fixture struct {
	service *Service
	manager *session.Manager
	tracker *lockout.Tracker
	backend *testutil.FakeBackend
	clock   *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := testutil.NewFakeBackend(t)
	clock := testutil.NewClock(time.Now())
	store := memstore.NewWithClock(clock.Now)

	api, err := client.New(client.Config{BaseURL: backend.URL()}, nil)
	require.NoError(t, err)

	manager := session.NewManager(session.Config{}, store, api, nil)
	t.Cleanup(manager.Destroy)

	tracker := lockout.New(lockout.Config{Now: clock.Now}, store, nil)

	service, err := NewService(api, manager, tracker, nil)
	require.NoError(t, err)

	return &fixture{
		service: service,
		manager: manager,
		tracker: tracker,
		backend: backend,
		clock:   clock,
	}
}

func Test_Service_Login(t *testing.T) {
	t.Parallel()

	t.Run("ok installs the session", func(t *testing.T) {
		f := newFixture(t)

		user, err := f.service.Login(t.Context(), "u@x.com", "p")

		require.NoError(t, err)
		assert.Equal(t, "u@x.com", user.Email)
		assert.True(t, f.manager.IsAuthenticated(), "login should leave an authenticated session")
		assert.NotEmpty(t, f.manager.AccessToken())
	})

	t.Run("bad credentials count as failed attempt", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Login(t.Context(), "u@x.com", "wrong")

		require.ErrorIs(t, err, apperrors.ErrBadCredentials)
		assert.Equal(t, 1, f.tracker.Status("u@x.com").Attempts)
		assert.False(t, f.manager.IsAuthenticated())
	})

	t.Run("five failures lock the identity before the network", func(t *testing.T) {
		f := newFixture(t)

		for i := 0; i < 5; i++ {
			_, err := f.service.Login(t.Context(), "u@x.com", "wrong")
			require.ErrorIs(t, err, apperrors.ErrBadCredentials)
		}
		loginCalls := f.backend.LoginCalls()

		_, err := f.service.Login(t.Context(), "u@x.com", "p")

		var locked *apperrors.LockoutActiveError
		require.ErrorAs(t, err, &locked, "locked identity should fail with LockoutActiveError")
		assert.Equal(t, 5, locked.Attempts)
		assert.Greater(t, locked.Remaining, time.Duration(0), "remaining time should be exposed for the UI countdown")
		assert.Equal(t, loginCalls, f.backend.LoginCalls(), "locked login must not reach the network")
	})

	t.Run("lockout expires and login succeeds again", func(t *testing.T) {
		f := newFixture(t)

		for i := 0; i < 5; i++ {
			_, _ = f.service.Login(t.Context(), "u@x.com", "wrong")
		}
		require.True(t, f.tracker.IsLockedOut("u@x.com"))

		f.clock.Advance(16 * time.Minute)

		_, err := f.service.Login(t.Context(), "u@x.com", "p")
		require.NoError(t, err, "login should work once the lockout self-healed")
	})

	t.Run("success resets the attempt counter", func(t *testing.T) {
		f := newFixture(t)

		_, _ = f.service.Login(t.Context(), "u@x.com", "wrong")
		_, _ = f.service.Login(t.Context(), "u@x.com", "wrong")
		require.Equal(t, 2, f.tracker.Status("u@x.com").Attempts)

		_, err := f.service.Login(t.Context(), "u@x.com", "p")
		require.NoError(t, err)

		assert.Zero(t, f.tracker.Status("u@x.com").Attempts, "successful login should clear the counter")
	})
}

func Test_Service_Register(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	user, err := f.service.Register(t.Context(), "new@x.com", "password123", "newbie")

	require.NoError(t, err)
	assert.Equal(t, "newbie", user.Username)
	assert.True(t, f.manager.IsAuthenticated())
}

func Test_Service_Logout(t *testing.T) {
	t.Parallel()

	t.Run("clears local session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Login(t.Context(), "u@x.com", "p")
		require.NoError(t, err)

		f.service.Logout(t.Context())

		assert.False(t, f.manager.IsAuthenticated())
		assert.Empty(t, f.manager.AccessToken())
	})

	t.Run("local cleanup proceeds when server call fails", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Login(t.Context(), "u@x.com", "p")
		require.NoError(t, err)

		// Backend gone: revoke call fails, cleanup still happens
		f.backend.Server.Close()
		f.service.Logout(t.Context())

		assert.False(t, f.manager.IsAuthenticated())
	})
}

// Package session owns the access/refresh token pair for one client
// process: it persists the pair, schedules proactive rotation before
// expiry, collapses concurrent refresh calls into a single network
// exchange, and signals when the session ends.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/logger"
	"github.com/voyago/tripsession/internal/models"
	"github.com/voyago/tripsession/internal/storage"
	"github.com/voyago/tripsession/internal/token"
)

const (
	defaultRotationMargin = 5 * time.Minute
	defaultRefreshTTL     = 30 * 24 * time.Hour

	refreshKey = "refresh"
)

// RefreshExchanger performs the refresh network exchange.
// Implemented by the HTTP client; kept as an interface so the manager
// stays network agnostic and testable.
type RefreshExchanger interface {
	// ExchangeRefresh trades a refresh token for a new pair.
	// An empty Refresh in the returned pair means the server omitted it.
	ExchangeRefresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// Manager config with sensible defaults
type Config struct {
	// How long before access expiry rotation fires
	// If not set than default is used
	RotationMargin time.Duration

	// Storage lifetime for the persisted refresh token
	// If not set than default is used
	RefreshTTL time.Duration

	// Clock override, for tests
	Now func() time.Time
}

// Manager is the token lifecycle state machine. One instance per process,
// constructed and injected, never a package level singleton.
type Manager struct {
	mu sync.Mutex

	pair   models.TokenPair
	claims models.Claims

	// generation counts pair swaps; a refresh result is applied only if
	// the generation it started under is still current, so a cleared
	// session can't be resurrected by a late network response
	generation uint64

	// at most one pending rotation timer at any time
	timer *time.Timer

	destroyed    bool
	onSessionEnd func()

	rotationMargin time.Duration
	refreshTTL     time.Duration
	now            func() time.Time

	store     storage.Store
	exchanger RefreshExchanger
	logger    logger.Logger

	group singleflight.Group
}

func NewManager(cfg Config, store storage.Store, exchanger RefreshExchanger, log logger.Logger) *Manager {
	if cfg.RotationMargin == 0 {
		cfg.RotationMargin = defaultRotationMargin
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Manager{
		rotationMargin: cfg.RotationMargin,
		refreshTTL:     cfg.RefreshTTL,
		now:            cfg.Now,
		store:          store,
		exchanger:      exchanger,
		logger:         log,
	}
}

// OnSessionEnd registers the callback fired once per session teardown,
// so the app can react (redirect to login, drop cached state)
func (m *Manager) OnSessionEnd(fn func()) {
	m.mu.Lock()
	m.onSessionEnd = fn
	m.mu.Unlock()
}

// SetTokens validates and installs a new token pair.
// Fails with apperrors.ErrInvalidToken when the access token does not
// decode or misses 'sub'/'exp'; previously stored valid state is kept
// untouched in that case. On success the swap is atomic: persist and
// rotation rescheduling complete before SetTokens returns.
func (m *Manager) SetTokens(access string, refresh string) error {
	claims, err := token.Decode(access)
	if err != nil {
		return fmt.Errorf("refusing token pair: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return apperrors.ErrNotAuthenticated
	}

	m.pair = models.TokenPair{Access: access, Refresh: refresh}
	m.claims = claims
	m.generation++

	m.persistLocked()
	m.scheduleRotationLocked()

	m.logger.Debug("Token pair installed",
		"subject", claims.Subject,
		"expires_at", claims.ExpiresAt.Format(time.RFC3339),
	)
	return nil
}

// AccessToken returns the current access token, empty when none.
// No validity check and no network activity, callers decide what to do
// with a possibly stale token.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair.Access
}

// IsAuthenticated reports whether an access token is present, decodes and
// has not expired yet
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pair.Access != "" && !m.claims.Expired(m.now())
}

// State returns the read only session snapshot
func (m *Manager) State() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pair.Access == "" {
		return models.SessionState{}
	}
	return models.StateFromClaims(m.claims, m.now())
}

// Refresh exchanges the refresh token for a new pair and returns the new
// access token. Concurrent callers share one in-flight exchange and
// receive the identical result.
//
// Returns empty string, never an error, when the session can't be
// refreshed: no refresh token, network failure, or the server rejecting
// the token. In every failure case all tokens are cleared, so callers
// treat "" uniformly as "must re-authenticate".
func (m *Manager) Refresh(ctx context.Context) string {
	result, _, _ := m.group.Do(refreshKey, func() (any, error) {
		return m.doRefresh(ctx), nil
	})
	return result.(string)
}

func (m *Manager) doRefresh(ctx context.Context) string {
	m.mu.Lock()
	refresh := m.pair.Refresh
	startedAt := m.generation
	m.mu.Unlock()

	if refresh == "" {
		return ""
	}

	pair, err := m.exchanger.ExchangeRefresh(ctx, refresh)
	if err != nil {
		m.logger.Warn("Refresh failed, session is over", "error", err.Error())
		m.clearIfCurrent(startedAt)
		return ""
	}

	// Server may omit the refresh token: keep using the existing one
	if pair.Refresh == "" {
		pair.Refresh = refresh
	}

	claims, err := token.Decode(pair.Access)
	if err != nil {
		m.logger.Warn("Refresh returned a malformed token", "error", err.Error())
		m.clearIfCurrent(startedAt)
		return ""
	}

	m.mu.Lock()
	if m.generation != startedAt || m.destroyed {
		// Tokens were cleared or replaced while the exchange was in
		// flight; don't resurrect the old session
		m.mu.Unlock()
		return ""
	}

	m.pair = pair
	m.claims = claims
	m.generation++
	m.persistLocked()
	m.scheduleRotationLocked()
	m.mu.Unlock()

	return pair.Access
}

// ClearTokens wipes the session: cancels the rotation timer, clears both
// in-memory and persisted state, and fires the session end signal.
// Idempotent, repeated calls are safe.
func (m *Manager) ClearTokens() {
	m.mu.Lock()

	hadTokens := m.pair.Access != "" || m.pair.Refresh != ""
	m.pair = models.TokenPair{}
	m.claims = models.Claims{}
	m.generation++
	m.cancelRotationLocked()

	m.store.Remove(storage.KeyAccessToken)
	m.store.Remove(storage.KeyRefreshToken)

	signal := m.onSessionEnd
	m.mu.Unlock()

	// Signal fires outside the lock and only on an actual transition
	if hadTokens && signal != nil {
		signal()
	}
}

// Destroy tears the manager down for good: pending timers are cancelled
// and callbacks detached. Persisted tokens are kept, teardown is not
// logout.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destroyed = true
	m.cancelRotationLocked()
	m.onSessionEnd = nil
}

// Restore loads a previously persisted pair back into memory, e.g. on app
// start. A persisted access token past its rotation point triggers an
// immediate refresh through the usual schedule.
func (m *Manager) Restore() error {
	access, ok := m.store.Get(storage.KeyAccessToken)
	if !ok {
		// Access token may have expired from storage while the refresh
		// token is still good: restore with an expired-looking pair is
		// impossible, so try a refresh directly.
		if refresh, ok := m.store.Get(storage.KeyRefreshToken); ok {
			m.mu.Lock()
			m.pair.Refresh = refresh
			m.mu.Unlock()
			if m.Refresh(context.Background()) == "" {
				return apperrors.ErrNotAuthenticated
			}
			return nil
		}
		return apperrors.ErrNotAuthenticated
	}

	refresh, _ := m.store.Get(storage.KeyRefreshToken)
	return m.SetTokens(access, refresh)
}

func (m *Manager) clearIfCurrent(generation uint64) {
	m.mu.Lock()
	current := m.generation == generation
	m.mu.Unlock()

	if current {
		m.ClearTokens()
	}
}

// persistLocked writes the current pair through the storage adapter.
// Access token lifetime follows its expiry; refresh token gets the fixed
// longer TTL. Storage failure degrades to in-memory only operation.
func (m *Manager) persistLocked() {
	accessTTL := m.claims.ExpiresAt.Sub(m.now())
	if accessTTL <= 0 {
		accessTTL = time.Second
	}

	if err := m.store.Set(storage.KeyAccessToken, m.pair.Access, storage.SessionOptions(accessTTL)); err != nil {
		m.logger.Warn("Token persistence unavailable, session is memory only", "error", err.Error())
		return
	}
	if err := m.store.Set(storage.KeyRefreshToken, m.pair.Refresh, storage.SessionOptions(m.refreshTTL)); err != nil {
		m.logger.Warn("Token persistence unavailable, session is memory only", "error", err.Error())
	}
}

// scheduleRotationLocked cancels any pending timer and schedules rotation
// at expiry minus the margin. A token already past that point rotates
// immediately instead of scheduling a negative timer.
func (m *Manager) scheduleRotationLocked() {
	m.cancelRotationLocked()

	generation := m.generation
	delay := m.claims.ExpiresAt.Sub(m.now()) - m.rotationMargin

	if delay <= 0 {
		go m.rotate(generation)
		return
	}

	m.timer = time.AfterFunc(delay, func() {
		m.rotate(generation)
	})
}

func (m *Manager) cancelRotationLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// rotate is the timer callback: one refresh attempt for the generation
// that scheduled it. A successful refresh reschedules the next rotation
// when the new pair is applied, so the schedule is self perpetuating
// while refreshes keep succeeding.
func (m *Manager) rotate(generation uint64) {
	m.mu.Lock()
	stale := m.generation != generation || m.destroyed
	m.mu.Unlock()
	if stale {
		return
	}

	m.logger.Debug("Rotating access token before expiry")
	m.Refresh(context.Background())
}

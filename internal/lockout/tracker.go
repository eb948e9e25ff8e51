// Package lockout tracks failed login attempts per identity and enforces a
// temporary lockout once the limit is crossed. Consulted only at the login
// entry point, independent of the token lifecycle.
package lockout

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/voyago/tripsession/internal/logger"
	"github.com/voyago/tripsession/internal/models"
	"github.com/voyago/tripsession/internal/storage"
)

const (
	defaultMaxAttempts     = 5
	defaultAttemptWindow   = 15 * time.Minute
	defaultLockoutDuration = 15 * time.Minute

	attemptsKeyPrefix = "login_attempts:"
	lockoutsKeyPrefix = "login_lockouts:"
)

// Tracker config with sensible defaults
type Config struct {
	// How many failed attempts inside the window trigger a lockout
	// If not set than default is used
	MaxAttempts int

	// Sliding window for counting attempts
	// If not set than default is used
	AttemptWindow time.Duration

	// How long an identity stays locked
	// If not set than default is used
	LockoutDuration time.Duration

	// Clock override, for tests
	Now func() time.Time
}

type Tracker struct {
	mu sync.Mutex

	maxAttempts     int
	attemptWindow   time.Duration
	lockoutDuration time.Duration
	now             func() time.Time

	store  storage.Store
	logger logger.Logger

	// Identities touched by this tracker instance, so ClearAll can
	// remove their records without wiping unrelated storage keys
	seen map[string]struct{}
}

func New(cfg Config, store storage.Store, log logger.Logger) *Tracker {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AttemptWindow == 0 {
		cfg.AttemptWindow = defaultAttemptWindow
	}
	if cfg.LockoutDuration == 0 {
		cfg.LockoutDuration = defaultLockoutDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Tracker{
		maxAttempts:     cfg.MaxAttempts,
		attemptWindow:   cfg.AttemptWindow,
		lockoutDuration: cfg.LockoutDuration,
		now:             cfg.Now,
		store:           store,
		logger:          log,
		seen:            make(map[string]struct{}),
	}
}

// RecordFailedAttempt counts one failed login for identity.
// No-op while the identity is locked out: a locked identity must not have
// its window reset or its lockout extended by further failures.
func (t *Tracker) RecordFailedAttempt(identity string) {
	identity = normalize(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen[identity] = struct{}{}

	if t.lockedLocked(identity, now) {
		return
	}

	rec, ok := t.loadAttempts(identity)
	if !ok || now.Sub(rec.WindowStartedAt) > t.attemptWindow {
		rec = models.AttemptRecord{Count: 1, WindowStartedAt: now}
	} else {
		rec.Count++
	}
	t.saveAttempts(identity, rec)

	if rec.Count >= t.maxAttempts {
		t.saveLockout(identity, models.LockoutRecord{LockedAt: now})
		t.logger.Warn("Identity locked out", "identity", logger.Email(identity), "attempts", rec.Count)
	}
}

// IsLockedOut reports whether identity is currently locked.
// An expired lockout record is lazily deleted, the lockout self-heals.
func (t *Tracker) IsLockedOut(identity string) bool {
	identity = normalize(identity)

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lockedLocked(identity, t.now())
}

// Status returns lockout state plus remaining time and attempt count
func (t *Tracker) Status(identity string) models.LockoutStatus {
	identity = normalize(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	status := models.LockoutStatus{}
	if rec, ok := t.loadAttempts(identity); ok && now.Sub(rec.WindowStartedAt) <= t.attemptWindow {
		status.Attempts = rec.Count
	}

	if lock, ok := t.loadLockout(identity); ok {
		remaining := t.lockoutDuration - now.Sub(lock.LockedAt)
		if remaining > 0 {
			status.IsLocked = true
			status.Remaining = remaining
		}
	}
	return status
}

// Unlock resets identity completely, e.g. after a successful login
func (t *Tracker) Unlock(identity string) {
	identity = normalize(identity)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.store.Remove(attemptsKeyPrefix + identity)
	t.store.Remove(lockoutsKeyPrefix + identity)
	delete(t.seen, identity)
}

// ClearAll resets every identity this tracker has touched
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for identity := range t.seen {
		t.store.Remove(attemptsKeyPrefix + identity)
		t.store.Remove(lockoutsKeyPrefix + identity)
	}
	t.seen = make(map[string]struct{})
}

// Sweep drops expired lockout records. Lazy deletion on read already keeps
// the tracker correct, this is memory hygiene only.
func (t *Tracker) Sweep() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for identity := range t.seen {
		if lock, ok := t.loadLockout(identity); ok && now.Sub(lock.LockedAt) > t.lockoutDuration {
			t.store.Remove(lockoutsKeyPrefix + identity)
		}
	}
}

func (t *Tracker) lockedLocked(identity string, now time.Time) bool {
	lock, ok := t.loadLockout(identity)
	if !ok {
		return false
	}
	if now.Sub(lock.LockedAt) > t.lockoutDuration {
		t.store.Remove(lockoutsKeyPrefix + identity)
		return false
	}
	return true
}

func (t *Tracker) loadAttempts(identity string) (models.AttemptRecord, bool) {
	var rec models.AttemptRecord
	raw, ok := t.store.Get(attemptsKeyPrefix + identity)
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// Corrupted record: drop it and start over
		t.store.Remove(attemptsKeyPrefix + identity)
		return models.AttemptRecord{}, false
	}
	return rec, true
}

func (t *Tracker) saveAttempts(identity string, rec models.AttemptRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := t.store.Set(attemptsKeyPrefix+identity, string(raw), storage.Options{TTL: t.attemptWindow}); err != nil {
		t.logger.Warn("Failed to persist attempt record", "error", err.Error())
	}
}

func (t *Tracker) loadLockout(identity string) (models.LockoutRecord, bool) {
	var rec models.LockoutRecord
	raw, ok := t.store.Get(lockoutsKeyPrefix + identity)
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.store.Remove(lockoutsKeyPrefix + identity)
		return models.LockoutRecord{}, false
	}
	return rec, true
}

func (t *Tracker) saveLockout(identity string, rec models.LockoutRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := t.store.Set(lockoutsKeyPrefix+identity, string(raw), storage.Options{TTL: t.lockoutDuration}); err != nil {
		t.logger.Warn("Failed to persist lockout record", "error", err.Error())
	}
}

// normalize maps an identity to its canonical lockout key.
// Identities are emails, matched case insensitively.
func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

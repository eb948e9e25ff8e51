package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsession/internal/models"
	"github.com/voyago/tripsession/internal/token"
)

const SigningKey = "test-secret-key"

// MustIssueToken signs an access token for tests, failing the test on error
func MustIssueToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()

	signed, err := token.Encode(models.Claims{
		Subject:   subject,
		ExpiresAt: expiresAt,
		Role:      "traveler",
	}, SigningKey)
	require.NoError(t, err, "failed to issue test token")

	return signed
}

// Clock is a manually advanced clock for deterministic expiry tests
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakeBackend fakes the auth endpoints with httptest.
// Counts refresh round trips so dedup properties can be asserted.
type FakeBackend struct {
	Server *httptest.Server

	// Credentials accepted by /auth/login
	Email    string
	Password string

	// Token lifetimes
	AccessTTL time.Duration

	// Artificial latency on /auth/refresh, to widen concurrency windows
	RefreshDelay time.Duration

	// When true /auth/refresh answers 401
	RejectRefresh atomic.Bool

	// When true /auth/refresh omits the refreshToken field
	OmitRefreshToken bool

	refreshCalls atomic.Int64
	loginCalls   atomic.Int64

	mu           sync.Mutex
	refreshToken string
	userID       string
}

func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	b := &FakeBackend{
		Email:     "u@x.com",
		Password:  "p",
		AccessTTL: 15 * time.Minute,
	}
	b.userID = uuid.NewString()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("POST /auth/register", b.register)
	mux.HandleFunc("POST /auth/refresh", b.refresh)
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)

	return b
}

func (b *FakeBackend) URL() string { return b.Server.URL }

// RefreshCalls returns how many times /auth/refresh was hit
func (b *FakeBackend) RefreshCalls() int { return int(b.refreshCalls.Load()) }

// LoginCalls returns how many times /auth/login was hit
func (b *FakeBackend) LoginCalls() int { return int(b.loginCalls.Load()) }

// CurrentRefreshToken returns the refresh token the backend expects next
func (b *FakeBackend) CurrentRefreshToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshToken
}

func (b *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	b.loginCalls.Add(1)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if req.Email != b.Email || req.Password != b.Password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	b.writePair(w, map[string]any{
		"id":       b.userID,
		"email":    b.Email,
		"username": "traveler",
	})
}

func (b *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	b.writePair(w, map[string]any{
		"id":       uuid.NewString(),
		"email":    req.Email,
		"username": req.Username,
	})
}

func (b *FakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	if b.RefreshDelay > 0 {
		time.Sleep(b.RefreshDelay)
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	known := b.refreshToken
	b.mu.Unlock()

	if b.RejectRefresh.Load() || req.RefreshToken == "" || (known != "" && req.RefreshToken != known) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	access, err := token.Encode(models.Claims{
		Subject:   b.userID,
		ExpiresAt: time.Now().Add(b.AccessTTL),
		Role:      "traveler",
	}, SigningKey)
	if err != nil {
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}

	payload := map[string]any{"accessToken": access}

	if !b.OmitRefreshToken {
		next := uuid.NewString()
		b.mu.Lock()
		b.refreshToken = next
		b.mu.Unlock()
		payload["refreshToken"] = next
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (b *FakeBackend) writePair(w http.ResponseWriter, user map[string]any) {
	access, err := token.Encode(models.Claims{
		Subject:   b.userID,
		ExpiresAt: time.Now().Add(b.AccessTTL),
		Role:      "traveler",
	}, SigningKey)
	if err != nil {
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}

	refresh := uuid.NewString()
	b.mu.Lock()
	b.refreshToken = refresh
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         user,
	})
}

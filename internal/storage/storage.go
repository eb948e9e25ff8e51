// Package storage defines the key-value persistence contract used for
// session tokens and lockout state. Stores are local and synchronous:
// a store that cannot reach its medium degrades to misses and no-ops
// instead of failing the caller.
package storage

import "time"

// Common storage keys. Lockout records are stored under the
// "login_attempts:" and "login_lockouts:" prefixes keyed by identity.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// SameSite policy values persisted alongside entries
const (
	SameSiteStrict = "strict"
	SameSiteLax    = "lax"
)

// Options carried with each stored entry
type Options struct {
	// Entry lifetime. Zero means no expiry.
	TTL time.Duration

	// Path scope of the entry
	Path string

	// Secure marks the entry as https-only
	Secure bool

	// SameSite strictness ("strict", "lax" or empty)
	SameSite string
}

// SessionOptions returns the options used for token entries
func SessionOptions(ttl time.Duration) Options {
	return Options{
		TTL:      ttl,
		Path:     "/",
		Secure:   true,
		SameSite: SameSiteStrict,
	}
}

// Store is the secure storage adapter contract
type Store interface {
	// Set persists value under key. May return ErrStorageUnavailable,
	// callers treat that as non-fatal and keep working in memory.
	Set(key string, value string, opts Options) error

	// Get returns the stored value, or false when missing or expired
	Get(key string) (string, bool)

	// Remove deletes the entry, no-op when missing
	Remove(key string)

	// Clear deletes every entry
	Clear()
}

package models

import "time"

// AttemptRecord counts failed logins for one identity inside a sliding window
type AttemptRecord struct {
	Count           int       `json:"count"`
	WindowStartedAt time.Time `json:"window_started_at"`
}

// LockoutRecord exists only once an identity crossed the attempt limit.
// It expires lockoutDuration after LockedAt and is removed lazily.
type LockoutRecord struct {
	LockedAt time.Time `json:"locked_at"`
}

// LockoutStatus is returned to callers that need to render lockout UI
type LockoutStatus struct {
	IsLocked  bool
	Remaining time.Duration
	Attempts  int
}

package models

import "time"

// TokenPair holds the current session credentials.
// The pair is always replaced as a whole: access token never changes
// without the refresh token being set or explicitly kept alongside it.
type TokenPair struct {
	Access  string
	Refresh string
}

// Claims decoded from the access token payload.
// Advisory only: used for rotation timing and UI display,
// authorization decisions stay server-side.
type Claims struct {
	Subject        string
	ExpiresAt      time.Time
	Role           string
	OrganizationID string
	Permissions    []string
}

// Expired reports whether the token expiry is in the past
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// HasPermission reports whether the decoded permission set contains perm
func (c Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

package models

import "time"

// SessionState is the read only view of the session exposed to the app.
// It is recomputed on every token pair change and never mutated on its own.
type SessionState struct {
	IsAuthenticated bool
	UserID          string
	Role            string
	OrganizationID  string
	Permissions     []string
	ExpiresAt       time.Time
}

// StateFromClaims builds a session snapshot from decoded access token claims
func StateFromClaims(c Claims, now time.Time) SessionState {
	return SessionState{
		IsAuthenticated: !c.Expired(now),
		UserID:          c.Subject,
		Role:            c.Role,
		OrganizationID:  c.OrganizationID,
		Permissions:     c.Permissions,
		ExpiresAt:       c.ExpiresAt,
	}
}

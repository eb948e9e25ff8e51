// Package token decodes the payload of a signed access token without
// verifying the signature. Verification is the server's job; the client
// decodes only to learn when to rotate and what to show in the UI.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/models"
)

// AccessTokenClaims wire format of the access token payload
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Role           string   `json:"role,omitempty"`
	OrganizationID string   `json:"org_id,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
}

// Decode parses the access token payload into claims.
// Fails with apperrors.ErrInvalidToken when the token is not a three segment
// JWT, the payload is not JSON, or 'sub'/'exp' claims are missing.
// The signature is intentionally not checked.
func Decode(raw string) (models.Claims, error) {
	claims := &AccessTokenClaims{}

	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(raw, claims)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return models.Claims{}, fmt.Errorf("%w: missing 'sub' claim", apperrors.ErrInvalidToken)
	}
	if claims.ExpiresAt == nil {
		return models.Claims{}, fmt.Errorf("%w: missing 'exp' claim", apperrors.ErrInvalidToken)
	}

	return models.Claims{
		Subject:        claims.Subject,
		ExpiresAt:      claims.ExpiresAt.Time,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
		Permissions:    claims.Permissions,
	}, nil
}

// Encode signs claims into an HS256 access token.
// Used by tests and by backend stubs; the real backend issues its own tokens.
func Encode(c models.Claims, key string) (string, error) {
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   c.Subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			},
			Role:           c.Role,
			OrganizationID: c.OrganizationID,
			Permissions:    c.Permissions,
		},
	)

	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return signed, nil
}

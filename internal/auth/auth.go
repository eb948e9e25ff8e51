// Package auth is the login entry point: it checks the lockout policy,
// performs the credential exchange and hands the resulting pair to the
// session manager.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/client"
	"github.com/voyago/tripsession/internal/lockout"
	"github.com/voyago/tripsession/internal/logger"
	"github.com/voyago/tripsession/internal/models"
	"github.com/voyago/tripsession/internal/session"
)

type Service struct {
	api     *client.Client
	manager *session.Manager
	tracker *lockout.Tracker
	logger  logger.Logger
}

func NewService(api *client.Client, manager *session.Manager, tracker *lockout.Tracker, log logger.Logger) (*Service, error) {
	if api == nil || manager == nil || tracker == nil {
		return nil, errors.New("api, manager and tracker must not be nil")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Service{
		api:     api,
		manager: manager,
		tracker: tracker,
		logger:  log,
	}, nil
}

// Login authenticates email+password and installs the returned pair.
// A locked out identity fails with LockoutActiveError before any network
// call; a 401 counts as a failed attempt, success resets the counter.
func (s *Service) Login(ctx context.Context, email string, password string) (models.User, error) {
	if s.tracker.IsLockedOut(email) {
		status := s.tracker.Status(email)
		return models.User{}, apperrors.NewLockoutActive(email, status.Remaining, status.Attempts)
	}

	resp, err := s.api.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, apperrors.ErrBadCredentials) {
			s.tracker.RecordFailedAttempt(email)
			s.logger.Info("Login rejected", "email", logger.Email(email))
		}
		return models.User{}, err
	}

	if err := s.manager.SetTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return models.User{}, fmt.Errorf("login succeeded but tokens are unusable: %w", err)
	}

	s.tracker.Unlock(email)
	s.logger.Info("Login ok", "email", logger.Email(email))
	return resp.User, nil
}

// Register creates the account and installs the returned pair
func (s *Service) Register(ctx context.Context, email string, password string, username string) (models.User, error) {
	resp, err := s.api.Register(ctx, client.RegisterRequest{Email: email, Password: password, Username: username})
	if err != nil {
		return models.User{}, err
	}

	if err := s.manager.SetTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return models.User{}, fmt.Errorf("registration succeeded but tokens are unusable: %w", err)
	}

	s.logger.Info("Registered", "email", logger.Email(email))
	return resp.User, nil
}

// Logout revokes the session server side (best-effort) and always clears
// local state, even when the revoke call fails or times out
func (s *Service) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx, s.manager.AccessToken()); err != nil {
		s.logger.Warn("Server side logout failed, clearing local session anyway", "error", err.Error())
	}
	s.manager.ClearTokens()
}

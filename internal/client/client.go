// Package client talks to the trip platform auth endpoints and provides
// the RoundTripper that injects bearer tokens and coordinates the single
// 401 retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/logger"
	"github.com/voyago/tripsession/internal/models"
)

const defaultTimeout = 10 * time.Second

var validate = validator.New()

func init() {
	// Report on json tag instead of struct field name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

type Config struct {
	// Backend base address, e.g. "https://api.tripline.example"
	// Required to be set
	BaseURL string

	// HTTP client override. The default client carries the package
	// timeout; the refresh exchange uses the same client and the same
	// timeout as every other call.
	HTTPClient *http.Client
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Username string `json:"username" validate:"required,min=2,max=50"`
}

// AuthResponse is the payload of successful login/register calls
type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         models.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type Client struct {
	baseURL string

	client *http.Client
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL must not be empty")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
		logger:  log,
	}, nil
}

// Login exchanges credentials for a token pair.
// Bad credentials map to apperrors.ErrBadCredentials so the caller can
// count the failed attempt.
func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	var out AuthResponse

	if err := validate.Struct(req); err != nil {
		return out, fmt.Errorf("login request not valid: %w", err)
	}

	resp, err := c.post(ctx, "/auth/login", req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		err = json.NewDecoder(resp.Body).Decode(&out)
		if err != nil {
			return out, fmt.Errorf("failed to decode login response: %w", err)
		}
		return out, nil
	case http.StatusUnauthorized:
		return out, apperrors.ErrBadCredentials
	default:
		return out, c.unexpectedStatus("/auth/login", resp)
	}
}

// Register creates an account and returns the initial token pair
func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var out AuthResponse

	if err := validate.Struct(req); err != nil {
		return out, fmt.Errorf("register request not valid: %w", err)
	}

	resp, err := c.post(ctx, "/auth/register", req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		err = json.NewDecoder(resp.Body).Decode(&out)
		if err != nil {
			return out, fmt.Errorf("failed to decode register response: %w", err)
		}
		return out, nil
	case http.StatusConflict:
		return out, apperrors.ErrUserAlreadyExists
	default:
		return out, c.unexpectedStatus("/auth/register", resp)
	}
}

// ExchangeRefresh trades a refresh token for a new pair.
// Implements session.RefreshExchanger. 401 and 403 mean the refresh token
// is invalid, expired or revoked.
func (c *Client) ExchangeRefresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair

	resp, err := c.post(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return pair, err
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		var out refreshResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		if err != nil {
			return pair, fmt.Errorf("failed to decode refresh response: %w", err)
		}
		return models.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return pair, apperrors.ErrRefreshRejected
	default:
		return pair, c.unexpectedStatus("/auth/refresh", resp)
	}
}

// Logout tells the backend to revoke the session. Best-effort: the caller
// proceeds with local cleanup whatever happens here.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, "/auth/logout", nil)
	if err != nil {
		return err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send logout request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("logout returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := c.newRequest(ctx, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *Client) unexpectedStatus(path string, resp *http.Response) error {
	c.logger.Warn("Unexpected status from auth endpoint", "path", path, "status_code", resp.StatusCode)
	return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, path)
}

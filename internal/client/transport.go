package client

import (
	"context"
	"io"
	"net/http"

	"github.com/voyago/tripsession/internal/logger"
	"github.com/voyago/tripsession/internal/session"
)

type skipAuthKey struct{}

// WithSkipAuth marks a request context so the transport sends it without
// an Authorization header and without the 401 retry
func WithSkipAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey{}, true)
}

func skipAuth(ctx context.Context) bool {
	v, _ := ctx.Value(skipAuthKey{}).(bool)
	return v
}

// Transport attaches the current bearer token to outgoing requests and,
// on a 401, refreshes once (deduplicated by the session manager) and
// replays the original request with the new token. A request is never
// retried more than once no matter how many 401s it collects.
type Transport struct {
	// Underlying transport, http.DefaultTransport when nil
	Base http.RoundTripper

	// Session manager providing tokens and the coordinated refresh
	Manager *session.Manager

	Logger logger.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if skipAuth(req.Context()) {
		return t.base().RoundTrip(req)
	}

	authed := req.Clone(req.Context())
	if tok := t.Manager.AccessToken(); tok != "" {
		authed.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base().RoundTrip(authed)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A request whose body can't be replayed is not retried
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	newToken := t.Manager.Refresh(req.Context())
	if newToken == "" {
		// Refresh exhausted: the manager already cleared the session and
		// fired the force-logout signal; propagate the original failure
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+newToken)

	t.log().Debug("Retrying request after token refresh", "url", req.URL.Path)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return t.base().RoundTrip(retry)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) log() logger.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return logger.NewNoOpLogger()
}

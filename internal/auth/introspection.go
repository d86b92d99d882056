// introspection.go implements the default verifier, which validates opaque OAuth access tokens
// against the provider's validate endpoint (Twitch by default).
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

// validateResponse is the body returned by the validate endpoint for a live token.
type validateResponse struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	Scopes    []string `json:"scopes"`
	UserID    string   `json:"user_id"`
	ExpiresIn int64    `json:"expires_in"`
}

// IntrospectionVerifier validates tokens with a GET to the configured validate URL.
type IntrospectionVerifier struct {
	client    *resty.Client
	url       string
	scheme    string
	clientIDs map[string]struct{}
}

// NewIntrospectionVerifier creates a verifier for the validate endpoint in cfg.
func NewIntrospectionVerifier(cfg config.TwitchConfig) *IntrospectionVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "OAuth"
	}

	allowed := make(map[string]struct{}, len(cfg.ClientIDs))
	for _, id := range cfg.ClientIDs {
		allowed[id] = struct{}{}
	}

	return &IntrospectionVerifier{
		client:    resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		url:       cfg.ValidateURL,
		scheme:    scheme,
		clientIDs: allowed,
	}
}

// Verify implements Verifier.
func (v *IntrospectionVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	id, err := v.verify(ctx, token)
	recordVerification("twitch", err)
	return id, err
}

func (v *IntrospectionVerifier) verify(ctx context.Context, token string) (*Identity, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("Authorization", v.scheme+" "+token).
		SetResult(&validateResponse{}).
		Get(v.url)
	if err != nil {
		slog.Warn("token introspection request failed", "error", err)
		return nil, fmt.Errorf("%w: introspection request failed: %v", ErrInvalidToken, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: introspection returned %d", ErrInvalidToken, resp.StatusCode())
	}

	body, ok := resp.Result().(*validateResponse)
	if !ok || body.UserID == "" {
		return nil, fmt.Errorf("%w: introspection response has no user", ErrInvalidToken)
	}
	if body.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if len(v.clientIDs) > 0 {
		if _, ok := v.clientIDs[body.ClientID]; !ok {
			return nil, fmt.Errorf("%w: token issued to unknown client %q", ErrInvalidToken, body.ClientID)
		}
	}

	return &Identity{
		UserID:    body.UserID,
		Login:     body.Login,
		Scopes:    body.Scopes,
		ExpiresIn: time.Duration(body.ExpiresIn) * time.Second,
	}, nil
}

package suno

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TODO: obtain this version from the redirect of https://clerk.suno.com/npm/@clerk/clerk-js@4/dist/clerk.browser.js
const clerkVersion = "4.72.4"

type clerkClientResponse struct {
	Response *clientResponse `json:"response"`
}

type clientResponse struct {
	Object              string `json:"object"`
	ID                  string `json:"id"`
	LastActiveSessionID string `json:"last_active_session_id"`
	CreatedAt           int64  `json:"created_at"`
	UpdatedAt           int64  `json:"updated_at"`
}

type clerkTokenResponse struct {
	JWT    string `json:"jwt"`
	Object string `json:"object"`
}

type token struct {
	value      string
	expiration time.Time
}

// fresh reports whether the token can be used. Tokens without a known
// expiration stay fresh until they are renewed.
func (t *token) fresh(now time.Time) bool {
	if t == nil || t.value == "" {
		return false
	}
	return t.expiration.IsZero() || now.Before(t.expiration)
}

// Token returns the current bearer token, or an empty string if none has
// been obtained yet.
func (c *Client) Token() string {
	if t := c.token.Load(); t != nil {
		return t.value
	}
	return ""
}

// Renew exchanges the session for a new token. Calls made while another
// renewal is in flight wait for it and return its outcome.
func (c *Client) Renew(ctx context.Context) (string, error) {
	value, err := c.renew(ctx, c.renewals.Load())
	if err != nil {
		return "", fail("renew", ErrTokenRenewal, err)
	}
	return value, nil
}

// ensureFresh returns the current token if it is still usable, otherwise
// it renews it.
func (c *Client) ensureFresh(ctx context.Context) (string, error) {
	// The counter is sampled before the token so a renewal finishing in
	// between is noticed by renew.
	seen := c.renewals.Load()
	if t := c.token.Load(); t.fresh(time.Now()) {
		return t.value, nil
	}
	return c.renew(ctx, seen)
}

// renew performs a renewal unless one has completed since the caller
// sampled the renewal counter as seen.
func (c *Client) renew(ctx context.Context, seen uint64) (string, error) {
	if err := c.renewLock.acquire(ctx); err != nil {
		return "", err
	}
	defer c.renewLock.release()

	if c.renewals.Load() != seen {
		if c.renewErr != nil {
			return "", c.renewErr
		}
		return c.Token(), nil
	}
	if c.session == "" {
		return "", errors.New("session id is not set")
	}

	value, expiration, err := c.sessionToken(ctx)
	if err != nil {
		// The previous token, if any, stays installed.
		c.renewErr = err
		c.renewals.Add(1)
		return "", err
	}
	c.token.Store(&token{value: value, expiration: expiration})
	c.renewErr = nil
	c.renewals.Add(1)

	ev := c.logger.Debug()
	if !expiration.IsZero() {
		ev = ev.Time("stale_at", expiration)
	}
	ev.Msg("suno: token renewed")
	return value, nil
}

// handshake obtains the session id once per client.
func (c *Client) handshake(ctx context.Context) error {
	if err := c.renewLock.acquire(ctx); err != nil {
		return err
	}
	defer c.renewLock.release()
	if c.session != "" {
		return nil
	}
	id, err := c.sessionID(ctx)
	if err != nil {
		return err
	}
	c.session = id
	return nil
}

func (c *Client) sessionID(ctx context.Context) (string, error) {
	var resp clerkClientResponse
	u := fmt.Sprintf("%s/v1/client?_clerk_js_version=%s", c.clerkURL, clerkVersion)
	if err := c.do(ctx, &request{op: "handshake", method: "GET", url: u, out: &resp}); err != nil {
		return "", fmt.Errorf("couldn't get client: %w", err)
	}
	if resp.Response == nil || resp.Response.LastActiveSessionID == "" {
		return "", errors.New("empty session id, the cookie may need to be updated")
	}
	return resp.Response.LastActiveSessionID, nil
}

func (c *Client) sessionToken(ctx context.Context) (string, time.Time, error) {
	u := fmt.Sprintf("%s/v1/client/sessions/%s/tokens?_clerk_js_version=%s", c.clerkURL, url.PathEscape(c.session), clerkVersion)
	var resp clerkTokenResponse
	if err := c.do(ctx, &request{op: "renew", method: "POST", url: u, out: &resp}); err != nil {
		return "", time.Time{}, fmt.Errorf("couldn't get clerk token: %w", err)
	}
	if resp.JWT == "" {
		return "", time.Time{}, errors.New("empty clerk token")
	}
	return resp.JWT, staleAt(resp.JWT, time.Now()), nil
}

// staleAt returns the moment a token should be renewed: 90% of its
// lifetime. Tokens that aren't JWTs or lack an expiration return zero.
func staleAt(raw string, now time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return now.Add(claims.ExpiresAt.Time.Sub(now) * 90 / 100)
}

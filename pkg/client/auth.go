package client

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// refreshBuffer is how long before token expiry a refresh is started.
	refreshBuffer = 60 * time.Second

	// minRefreshInterval bounds how often the fetcher can be invoked.
	minRefreshInterval = 5 * time.Second

	// defaultRefreshInterval applies when a token carries no exp claim.
	defaultRefreshInterval = 300 * time.Second
)

// TokenFetcher produces a fresh auth token. Returning an empty token means
// the caller is signed out; returning an error retries after the default
// interval.
type TokenFetcher func(ctx context.Context) (string, error)

// AuthHandle controls a background token-refresh loop started by
// SetAuthWithRefresh.
type AuthHandle struct {
	client      *Client
	cancel      context.CancelFunc
	disposeOnce sync.Once

	mu     sync.Mutex
	authed bool
}

// SetAuthWithRefresh installs an auth token that is refreshed automatically.
// The fetcher is called immediately and again shortly before each token
// expires, based on the token's JWT exp claim. The returned handle stops the
// loop via Dispose; closing the client stops it as well.
func (c *Client) SetAuthWithRefresh(fetch TokenFetcher) *AuthHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &AuthHandle{client: c, cancel: cancel}
	go h.run(ctx, fetch)
	return h
}

// IsAuthenticated reports whether the last fetch produced a token.
func (h *AuthHandle) IsAuthenticated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authed
}

// Dispose stops the refresh loop and clears the client's auth token. It is
// idempotent.
func (h *AuthHandle) Dispose() {
	h.disposeOnce.Do(func() {
		h.cancel()
		if !h.client.closedFlag.Load() {
			h.client.SetAuth("")
		}
		h.mu.Lock()
		h.authed = false
		h.mu.Unlock()
	})
}

func (h *AuthHandle) run(ctx context.Context, fetch TokenFetcher) {
	c := h.client
	for {
		next := defaultRefreshInterval

		token, err := fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			c.logger.Warn("token fetch failed", "error", err)
			h.setAuthed(false)
		case token == "":
			c.SetAuth("")
			h.setAuthed(false)
		default:
			c.SetAuth(token)
			h.setAuthed(true)
			next = refreshDelay(token, c.clk.Now())
		}

		t := c.clk.Timer(next)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		case <-c.done:
			t.Stop()
			return
		}
	}
}

func (h *AuthHandle) setAuthed(v bool) {
	h.mu.Lock()
	h.authed = v
	h.mu.Unlock()
}

// refreshDelay derives the wait until the next refresh from the token's exp
// claim. The claim is read without signature verification: the client only
// schedules from it, the server is the one that trusts tokens.
func refreshDelay(token string, now time.Time) time.Duration {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return defaultRefreshInterval
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return defaultRefreshInterval
	}
	delay := exp.Time.Sub(now) - refreshBuffer
	if delay < minRefreshInterval {
		return minRefreshInterval
	}
	return delay
}

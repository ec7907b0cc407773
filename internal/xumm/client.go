// Package xumm implements the redirect-wallet capability against an
// XUMM/Xaman-style platform API: an OAuth-like handshake that resolves to an
// account plus a signing handle, payload creation for out-of-band signing,
// and a websocket push channel delivering terminal signing outcomes.
package xumm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JamaaOnline/sky-token-staking/internal/config"
	"github.com/JamaaOnline/sky-token-staking/internal/wallet"
)

const defaultBaseURL = "https://xumm.app"

// Client implements wallet.Handshake. One client serves one API key.
type Client struct {
	apiKey         string
	baseURL        string
	redirectTarget string
	persist        bool
	markers        []string
	store          *sessionStore
	httpClient     *http.Client
	logger         *logrus.Logger

	// OnApprovalLink, when set, receives the sign-in approval link during a
	// fresh handshake so the host can surface it.
	OnApprovalLink func(link string)
}

func NewClient(cfg config.Redirect, logger *logrus.Logger) *Client {
	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        defaultBaseURL,
		redirectTarget: cfg.Target,
		persist:        cfg.PersistSession,
		markers:        cfg.Markers,
		store:          newSessionStore(cfg.SessionFile),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type payloadResponse struct {
	UUID string `json:"uuid"`
	Next struct {
		Always string `json:"always"`
	} `json:"next"`
	Refs struct {
		WebsocketStatus string `json:"websocket_status"`
	} `json:"refs"`
}

type payloadResult struct {
	Response struct {
		Account   string `json:"account"`
		UserToken string `json:"user_token"`
		TxID      string `json:"txid"`
	} `json:"response"`
}

type sessionResponse struct {
	Account      string `json:"account"`
	SessionToken string `json:"session_token"`
}

// Resolve completes a return from the approval surface when returnURL
// carries a completion marker, or starts a fresh sign-in handshake otherwise.
// A fresh handshake blocks until the sign-in is approved or ctx ends.
func (c *Client) Resolve(ctx context.Context, returnURL string) (*wallet.Resolution, error) {
	if token := c.markerToken(returnURL); token != "" {
		return c.resolveReturn(ctx, token)
	}
	return c.freshSignIn(ctx)
}

// resolveReturn exchanges the one-time token the approval surface embedded
// on the return URL for account data and a session token.
func (c *Client) resolveReturn(ctx context.Context, token string) (*wallet.Resolution, error) {
	var res sessionResponse
	err := c.post(ctx, "/api/v1/oauth/ott", map[string]any{"token": token}, &res)
	if err != nil {
		return nil, fmt.Errorf("one-time token exchange failed: %w", err)
	}
	if res.Account == "" {
		return nil, fmt.Errorf("one-time token resolved without an account")
	}

	c.persistToken(res.SessionToken)
	return &wallet.Resolution{
		Account: res.Account,
		Handle:  newHandle(c),
	}, nil
}

// freshSignIn creates a sign-in payload, surfaces its approval link and
// awaits the push-channel outcome.
func (c *Client) freshSignIn(ctx context.Context) (*wallet.Resolution, error) {
	body := map[string]any{
		"txjson": map[string]any{"TransactionType": "SignIn"},
		"options": map[string]any{
			"return_url": map[string]any{"app": c.redirectTarget, "web": c.redirectTarget},
		},
	}
	var created payloadResponse
	if err := c.post(ctx, "/api/v1/platform/payload", body, &created); err != nil {
		return nil, fmt.Errorf("sign-in payload creation failed: %w", err)
	}

	if c.OnApprovalLink != nil {
		c.OnApprovalLink(created.Next.Always)
	}

	sub, err := dialStatus(ctx, created.Refs.WebsocketStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrChannelError, err)
	}
	defer sub.Close()

	outcome, err := sub.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign-in approval wait failed: %w", err)
	}
	if !outcome.Signed {
		return nil, wallet.ErrRejected
	}

	var result payloadResult
	if err := c.get(ctx, "/api/v1/platform/payload/"+created.UUID, &result); err != nil {
		return nil, fmt.Errorf("sign-in payload fetch failed: %w", err)
	}
	if result.Response.Account == "" {
		return nil, fmt.Errorf("sign-in resolved without an account")
	}

	c.persistToken(result.Response.UserToken)
	return &wallet.Resolution{
		Account: result.Response.Account,
		Handle:  newHandle(c),
	}, nil
}

// RestoreSession resolves a previously persisted session token, the silent
// "remember me" path. Returns (nil, nil) when nothing is persisted.
func (c *Client) RestoreSession(ctx context.Context) (*wallet.Resolution, error) {
	token, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("session token load failed: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	var res sessionResponse
	err = c.post(ctx, "/api/v1/oauth/session", map[string]any{"session_token": token}, &res)
	if err != nil {
		return nil, fmt.Errorf("session token resolution failed: %w", err)
	}
	if res.Account == "" {
		return nil, nil
	}

	if res.SessionToken != "" {
		c.persistToken(res.SessionToken)
	}
	return &wallet.Resolution{
		Account: res.Account,
		Handle:  newHandle(c),
	}, nil
}

// ForgetSession drops the persisted session token. Server-side revocation is
// the approval surface's responsibility.
func (c *Client) ForgetSession() error {
	return c.store.Clear()
}

func (c *Client) persistToken(token string) {
	if !c.persist || token == "" {
		return
	}
	if err := c.store.Save(token); err != nil {
		c.logger.WithError(err).Warn("failed to persist session token")
	}
}

// markerToken returns the value of the first completion marker present on
// rawURL, or "".
func (c *Client) markerToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, m := range c.markers {
		if q.Has(m) {
			return q.Get(m)
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("xumm: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("xumm: failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("xumm: failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("xumm: failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("xumm: unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("xumm: failed to decode response: %w", err)
	}
	return nil
}

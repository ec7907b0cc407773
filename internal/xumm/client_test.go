package xumm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamaaOnline/sky-token-staking/internal/config"
	"github.com/JamaaOnline/sky-token-staking/internal/wallet"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testRedirectConfig(t *testing.T) config.Redirect {
	t.Helper()
	return config.Redirect{
		APIKey:         "test-key",
		Target:         "https://stake.example.com/",
		PersistSession: true,
		SessionFile:    filepath.Join(t.TempDir(), "session"),
		Markers:        []string{"xAppToken", "payloadId", "ott"},
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(testRedirectConfig(t), testLogger())
	c.baseURL = srv.URL
	return c
}

func TestSessionStore(t *testing.T) {
	store := newSessionStore(filepath.Join(t.TempDir(), "session"))

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token, "missing file means no token")

	require.NoError(t, store.Save("opaque-token"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	// Clearing twice is safe.
	require.NoError(t, store.Clear())
}

func TestMarkerToken(t *testing.T) {
	c := NewClient(testRedirectConfig(t), testLogger())

	assert.Equal(t, "abc123", c.markerToken("https://stake.example.com/?ott=abc123"))
	assert.Equal(t, "tok", c.markerToken("https://stake.example.com/?utm=x&xAppToken=tok"))
	assert.Empty(t, c.markerToken("https://stake.example.com/?utm=x"))
	assert.Empty(t, c.markerToken("://broken?ott=abc"))
}

func TestResolve_CompletesReturnWithOneTimeToken(t *testing.T) {
	var gotToken string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/oauth/ott", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotToken, _ = body["token"].(string)

		json.NewEncoder(w).Encode(map[string]any{
			"account":       "rBob",
			"session_token": "persisted-token",
		})
	}))

	res, err := c.Resolve(context.Background(), "https://stake.example.com/?ott=abc123")

	require.NoError(t, err)
	assert.Equal(t, "abc123", gotToken)
	assert.Equal(t, "rBob", res.Account)
	assert.NotNil(t, res.Handle)

	token, err := c.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "persisted-token", token, "session token must be persisted for later restore")
}

func TestResolve_MissingAccountInExchange(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"session_token": "x"})
	}))

	_, err := c.Resolve(context.Background(), "https://stake.example.com/?ott=abc123")
	assert.Error(t, err)
}

func TestRestoreSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/oauth/session", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "persisted-token", body["session_token"])

		json.NewEncoder(w).Encode(map[string]any{"account": "rBob"})
	}))
	require.NoError(t, c.store.Save("persisted-token"))

	res, err := c.RestoreSession(context.Background())

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "rBob", res.Account)
	assert.NotNil(t, res.Handle)
}

func TestRestoreSession_NothingPersisted(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a persisted token")
	}))

	res, err := c.RestoreSession(context.Background())

	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRestoreSession_ExpiredToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	require.NoError(t, c.store.Save("stale-token"))

	_, err := c.RestoreSession(context.Background())
	assert.Error(t, err)
}

func TestHandle_CreateSigningRequest(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/platform/payload", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		txjson, ok := body["txjson"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Payment", txjson["TransactionType"])

		json.NewEncoder(w).Encode(map[string]any{
			"uuid": "payload-1",
			"next": map[string]any{"always": "https://approve/payload-1"},
			"refs": map[string]any{"websocket_status": "wss://status/payload-1"},
		})
	}))
	h := newHandle(c)

	req, err := h.CreateSigningRequest(context.Background(), map[string]any{"TransactionType": "Payment"})

	require.NoError(t, err)
	assert.Equal(t, "payload-1", req.RequestID)
	assert.Equal(t, "https://approve/payload-1", req.ApprovalLink)
}

func TestHandle_ClosedHandleRefusesWork(t *testing.T) {
	c := NewClient(testRedirectConfig(t), testLogger())
	h := newHandle(c)
	require.NoError(t, h.Close())

	_, err := h.CreateSigningRequest(context.Background(), map[string]any{})
	assert.Error(t, err)

	_, err = h.Subscribe(context.Background(), "payload-1")
	assert.Error(t, err)
}

func TestHandle_SubscribeUnknownRequest(t *testing.T) {
	c := NewClient(testRedirectConfig(t), testLogger())
	h := newHandle(c)

	_, err := h.Subscribe(context.Background(), "never-created")
	assert.Error(t, err)
}

// wsServer upgrades incoming connections and runs script against each.
func wsServer(t *testing.T, script func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscription_SignedOutcome(t *testing.T) {
	wsURL := wsServer(t, func(conn *websocket.Conn) {
		// Non-terminal frames precede the outcome.
		conn.WriteJSON(map[string]any{"expires_in_seconds": 300})
		conn.WriteJSON(map[string]any{"opened": true})
		conn.WriteJSON(map[string]any{"signed": true, "txid": "FEEDC0FFEE"})
	})

	sub, err := dialStatus(context.Background(), wsURL)
	require.NoError(t, err)
	defer sub.Close()

	outcome, err := sub.Next(context.Background())

	require.NoError(t, err)
	assert.True(t, outcome.Signed)
	assert.Equal(t, "FEEDC0FFEE", outcome.TxID)
}

func TestSubscription_RejectedOutcome(t *testing.T) {
	wsURL := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"signed": false})
	})

	sub, err := dialStatus(context.Background(), wsURL)
	require.NoError(t, err)
	defer sub.Close()

	outcome, err := sub.Next(context.Background())

	require.NoError(t, err)
	assert.False(t, outcome.Signed)
}

func TestSubscription_DeadlineWithoutTerminalMessage(t *testing.T) {
	wsURL := wsServer(t, func(conn *websocket.Conn) {
		// Keep the channel open without ever sending a terminal message.
		time.Sleep(200 * time.Millisecond)
	})

	sub, err := dialStatus(context.Background(), wsURL)
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscription_ServerDropIsChannelError(t *testing.T) {
	wsURL := wsServer(t, func(conn *websocket.Conn) {
		// Drop the connection without a terminal message.
	})

	sub, err := dialStatus(context.Background(), wsURL)
	require.NoError(t, err)
	defer sub.Close()

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, wallet.ErrChannelError)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	wsURL := wsServer(t, func(conn *websocket.Conn) {})

	sub, err := dialStatus(context.Background(), wsURL)
	require.NoError(t, err)

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

package xrpl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "SKY", "rIssuer111111111111111111111111111", testLogger())
	c.pollDelay = time.Millisecond
	return c
}

func linesResponse(lines []map[string]string) map[string]any {
	return map[string]any{
		"result": map[string]any{
			"status": "success",
			"lines":  lines,
		},
	}
}

func TestGetBalance_FiltersByCurrencyAndIssuer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req xrplRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "account_lines", req.Method)
		require.Len(t, req.Params, 1)
		assert.Equal(t, "validated", req.Params[0].LedgerIndex)

		json.NewEncoder(w).Encode(linesResponse([]map[string]string{
			{"account": "rOtherIssuer", "currency": "SKY", "balance": "5"},
			{"account": "rIssuer111111111111111111111111111", "currency": "USD", "balance": "7"},
			{"account": "rIssuer111111111111111111111111111", "currency": "SKY", "balance": "100"},
		}))
	})

	assert.Equal(t, "100", c.GetBalance(context.Background(), "rAccount"))
}

func TestGetBalance_NoMatchingLine(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(linesResponse(nil))
	})

	assert.Equal(t, "0", c.GetBalance(context.Background(), "rAccount"))
}

func TestGetBalance_SwallowsTransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "ledger error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"result": map[string]any{
						"error":         "actNotFound",
						"error_message": "Account not found.",
					},
				})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			assert.Equal(t, "0", c.GetBalance(context.Background(), "rAccount"))
		})
	}
}

func TestGetBalance_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "SKY", "rIssuer", testLogger())
	assert.Equal(t, "0", c.GetBalance(context.Background(), "rAccount"))
}

func TestWaitForFinality_ValidatedOnThirdAttempt(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"error":         "txnNotFound",
					"error_message": "Transaction not found.",
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"status":    "success",
				"validated": true,
			},
		})
	})

	assert.True(t, c.WaitForFinality(context.Background(), "ABC123"))
	assert.Equal(t, 3, calls)
}

func TestWaitForFinality_ExhaustsAttemptCeiling(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"status":    "success",
				"validated": false,
			},
		})
	})

	assert.False(t, c.WaitForFinality(context.Background(), "ABC123"))
	assert.Equal(t, finalityAttempts, calls)
}

func TestWaitForFinality_PersistentTransportFailure(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	assert.False(t, c.WaitForFinality(context.Background(), "ABC123"))
	assert.Equal(t, finalityAttempts, calls)
}

func TestWaitForFinality_ContextCancelStopsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		cancel()
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"status": "success", "validated": false},
		})
	})

	assert.False(t, c.WaitForFinality(ctx, "ABC123"))
	assert.Less(t, calls, finalityAttempts)
}

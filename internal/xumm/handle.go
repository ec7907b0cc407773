package xumm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JamaaOnline/sky-token-staking/internal/wallet"
)

// Handle implements wallet.SigningHandle on top of the payload API. It is
// owned by the live wallet session and invalidated on logout via Close.
type Handle struct {
	c *Client

	mu     sync.Mutex
	closed bool
	// wsByRequest maps a created payload to its status websocket.
	wsByRequest map[string]string
}

func newHandle(c *Client) *Handle {
	return &Handle{
		c:           c,
		wsByRequest: make(map[string]string),
	}
}

// CreateSigningRequest submits the transaction as a payload and returns the
// request id plus the navigable approval link.
func (h *Handle) CreateSigningRequest(ctx context.Context, tx map[string]any) (wallet.SigningRequest, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return wallet.SigningRequest{}, fmt.Errorf("signing handle is closed")
	}
	h.mu.Unlock()

	body := map[string]any{
		"txjson": tx,
		"custom_meta": map[string]any{
			"identifier": uuid.NewString(),
		},
	}
	var created payloadResponse
	if err := h.c.post(ctx, "/api/v1/platform/payload", body, &created); err != nil {
		return wallet.SigningRequest{}, fmt.Errorf("payload creation failed: %w", err)
	}
	if created.UUID == "" {
		return wallet.SigningRequest{}, fmt.Errorf("payload created without an id")
	}

	h.mu.Lock()
	h.wsByRequest[created.UUID] = created.Refs.WebsocketStatus
	h.mu.Unlock()

	return wallet.SigningRequest{
		RequestID:    created.UUID,
		ApprovalLink: created.Next.Always,
	}, nil
}

// Subscribe opens the push channel of one signing request.
func (h *Handle) Subscribe(ctx context.Context, requestID string) (wallet.Subscription, error) {
	h.mu.Lock()
	wsURL, ok := h.wsByRequest[requestID]
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("signing handle is closed")
	}
	if !ok || wsURL == "" {
		return nil, fmt.Errorf("no push channel known for request %s", requestID)
	}
	return dialStatus(ctx, wsURL)
}

// Close invalidates the handle. Outstanding subscriptions are closed by their
// own owners.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.wsByRequest = nil
	return nil
}

// statusMessage is one frame of the payload status stream. Frames without a
// signed field (queue position, expiry countdowns) are not terminal.
type statusMessage struct {
	Signed *bool  `json:"signed"`
	TxID   string `json:"txid"`
}

type subscription struct {
	conn *websocket.Conn
	once sync.Once
}

func dialStatus(ctx context.Context, wsURL string) (*subscription, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return &subscription{conn: conn}, nil
}

// Next blocks until a terminal message arrives or ctx ends. Non-terminal
// status frames are skipped.
func (s *subscription) Next(ctx context.Context) (wallet.SignOutcome, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		var msg statusMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return wallet.SignOutcome{}, ctx.Err()
			}
			return wallet.SignOutcome{}, fmt.Errorf("%w: %v", wallet.ErrChannelError, err)
		}
		if msg.Signed == nil {
			continue
		}
		if *msg.Signed {
			return wallet.SignOutcome{Signed: true, TxID: msg.TxID}, nil
		}
		return wallet.SignOutcome{Signed: false}, nil
	}
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.conn.Close()
	})
	return err
}

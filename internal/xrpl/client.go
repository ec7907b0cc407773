package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Ledger is the read surface the staking flow needs from an XRPL node.
type Ledger interface {
	// GetBalance returns the tracked token balance for address, or "0" when
	// the trust line is absent or the query fails. Advisory read: errors are
	// swallowed by policy, the caller cannot tell absence from a transport
	// hiccup and treats both as "unknown, display zero".
	GetBalance(ctx context.Context, address string) string

	// WaitForFinality polls the transaction until it is observed in a
	// validated ledger, up to a fixed attempt ceiling.
	WaitForFinality(ctx context.Context, txID string) bool
}

const (
	finalityAttempts = 10
	finalityDelay    = time.Second
)

// Client implements Ledger using XRPL JSON-RPC
type Client struct {
	rpcURL     string
	currency   string
	issuer     string
	httpClient *http.Client
	logger     *logrus.Logger
	pollDelay  time.Duration
}

// NewClient creates an XRPL client tracking one currency+issuer pair.
func NewClient(rpcURL, currency, issuer string, logger *logrus.Logger) *Client {
	return &Client{
		rpcURL:   rpcURL,
		currency: currency,
		issuer:   issuer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		pollDelay: finalityDelay,
	}
}

// XRPL JSON-RPC request/response structures
type xrplRequest struct {
	Method  string      `json:"method"`
	Params  []xrplParam `json:"params"`
	ID      int         `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
}

type xrplParam struct {
	Account     string `json:"account,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	LedgerIndex string `json:"ledger_index,omitempty"`
}

type xrplResponse struct {
	Result xrplResult `json:"result"`
	Status string     `json:"status,omitempty"`
}

type xrplResult struct {
	Status       string      `json:"status,omitempty"`
	Lines        []trustLine `json:"lines,omitempty"`
	Validated    bool        `json:"validated,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// trustLine is one entry of an account_lines response. Account holds the
// counterparty, which for issued tokens is the issuer address.
type trustLine struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// ledgerError is an error reported inside an otherwise well-formed XRPL
// response, e.g. txnNotFound.
type ledgerError struct {
	code    string
	message string
}

func (e *ledgerError) Error() string {
	return fmt.Sprintf("xrpl: ledger error: %s - %s", e.code, e.message)
}

// makeRequest performs an XRPL JSON-RPC request
func (c *Client) makeRequest(ctx context.Context, command string, param xrplParam) (*xrplResponse, error) {
	reqBody := xrplRequest{
		Method:  command,
		Params:  []xrplParam{param},
		ID:      1,
		JSONRPC: "2.0",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("xrpl: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("xrpl: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xrpl: failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xrpl: unexpected status code: %d", resp.StatusCode)
	}

	var xrplResp xrplResponse
	if err := json.NewDecoder(resp.Body).Decode(&xrplResp); err != nil {
		return nil, fmt.Errorf("xrpl: failed to decode response: %w", err)
	}

	if xrplResp.Result.Error != "" {
		return nil, &ledgerError{code: xrplResp.Result.Error, message: xrplResp.Result.ErrorMessage}
	}

	return &xrplResp, nil
}

// GetBalance queries validated trust lines and picks the configured
// currency+issuer pair. Every failure path returns "0".
func (c *Client) GetBalance(ctx context.Context, address string) string {
	resp, err := c.makeRequest(ctx, "account_lines", xrplParam{
		Account:     address,
		LedgerIndex: "validated",
	})
	if err != nil {
		c.logger.WithError(err).WithField("account", address).
			Warn("balance query failed, defaulting to 0")
		return "0"
	}

	for _, line := range resp.Result.Lines {
		if line.Currency == c.currency && line.Account == c.issuer {
			return line.Balance
		}
	}
	return "0"
}

// WaitForFinality polls the tx command until the transaction shows up in a
// validated ledger. txnNotFound during early attempts is expected, the
// transaction may not be indexed yet.
func (c *Client) WaitForFinality(ctx context.Context, txID string) bool {
	ticker := time.NewTicker(c.pollDelay)
	defer ticker.Stop()

	for attempt := 1; attempt <= finalityAttempts; attempt++ {
		resp, err := c.makeRequest(ctx, "tx", xrplParam{
			Transaction: txID,
		})
		switch {
		case err == nil && resp.Result.Validated:
			return true
		case err != nil:
			var lerr *ledgerError
			if errors.As(err, &lerr) && lerr.code == "txnNotFound" {
				c.logger.WithField("tx", txID).Debugf("tx not yet indexed, attempt %d", attempt)
			} else {
				c.logger.WithError(err).WithField("tx", txID).
					Debugf("finality poll failed, attempt %d", attempt)
			}
		}

		if attempt == finalityAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return false
}

package payment

import (
	"encoding/hex"
	"fmt"
	"strings"

	xrpgo "github.com/xyield/xrpl-go/binary-codec"

	"github.com/JamaaOnline/sky-token-staking/internal/amount"
	"github.com/JamaaOnline/sky-token-staking/internal/config"
	"github.com/JamaaOnline/sky-token-staking/internal/terms"
)

// Memo type labels. The first memo carries the terms signature artifact, the
// second a fixed label marking the payment as a terms-signed stake.
const (
	memoTypeSignature = "terms/signature"
	memoTypeLabel     = "terms/accepted"
	memoLabel         = "terms-signature"
)

// Payment is a structurally valid token-transfer request ready for wallet
// submission.
type Payment struct {
	tx map[string]any
}

// TxJSON returns the transaction in XRPL tx-json shape.
func (p Payment) TxJSON() map[string]any {
	return p.tx
}

// CanonicalBytes serializes the transaction through the binary codec with an
// encode, decode, re-encode round trip for canonical bytes.
func (p Payment) CanonicalBytes() ([]byte, error) {
	hexStr, err := xrpgo.Encode(p.tx)
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}

	decoded, err := xrpgo.Decode(strings.ToUpper(hexStr))
	if err != nil {
		return nil, fmt.Errorf("decode round-trip failed: %w", err)
	}

	canonicalHex, err := xrpgo.Encode(decoded)
	if err != nil {
		return nil, fmt.Errorf("re-encode failed: %w", err)
	}

	txBytes, err := hex.DecodeString(canonicalHex)
	if err != nil {
		return nil, fmt.Errorf("hex to bytes failed: %w", err)
	}

	return txBytes, nil
}

// Builder constructs token-transfer payments for the configured staking
// destination. Pure, no I/O.
type Builder struct {
	destination string
	currency    string
	issuer      string
}

func NewBuilder(cfg config.Staking) *Builder {
	return &Builder{
		destination: cfg.StakingDestination,
		currency:    cfg.TokenCurrency,
		issuer:      cfg.TokenIssuer,
	}
}

// Build produces a token Payment with two memos. Non-positive amounts are a
// precondition violation rejected by the orchestrator before this stage, but
// validated again here.
func (b *Builder) Build(account, value string, artifact terms.Artifact) (Payment, error) {
	if account == "" {
		return Payment{}, fmt.Errorf("account cannot be empty")
	}
	if b.destination == "" {
		return Payment{}, fmt.Errorf("destination cannot be empty")
	}
	if b.issuer == "" {
		return Payment{}, fmt.Errorf("issuer cannot be empty")
	}
	if artifact == "" {
		return Payment{}, fmt.Errorf("terms signature artifact cannot be empty")
	}

	amt, err := amount.Parse(value)
	if err != nil {
		return Payment{}, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.Positive(amt) {
		return Payment{}, fmt.Errorf("amount must be positive: %s", value)
	}

	tx := map[string]any{
		"TransactionType": "Payment",
		"Account":         account,
		"Destination":     b.destination,
		"Amount": map[string]any{
			"currency": b.currency,
			"issuer":   b.issuer,
			"value":    value,
		},
		"Memos": []any{
			memoEntry(memoTypeSignature, string(artifact)),
			memoEntry(memoTypeLabel, memoLabel),
		},
	}
	return Payment{tx: tx}, nil
}

// memoEntry hex-encodes a memo the way XRPL expects.
func memoEntry(memoType, memoData string) map[string]any {
	return map[string]any{
		"Memo": map[string]any{
			"MemoType": strings.ToUpper(hex.EncodeToString([]byte(memoType))),
			"MemoData": strings.ToUpper(hex.EncodeToString([]byte(memoData))),
		},
	}
}

package wallet

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PaymentResult is what an extension wallet returns after submitting a
// payment.
type PaymentResult struct {
	Hash string
}

// Extension is the synchronous browser-extension wallet capability.
type Extension interface {
	IsInstalled(ctx context.Context) bool
	GetAddress(ctx context.Context) (string, error)
	GetNetwork(ctx context.Context) (string, error)
	SignMessage(ctx context.Context, text string) (string, error)
	SendPayment(ctx context.Context, tx map[string]any) (PaymentResult, error)
}

// Resolution is the outcome of a completed redirect handshake: the account
// plus the capability to request further out-of-band signatures. Extra may
// carry provider-specific values; Handle is a live capability and must never
// be serialized wholesale, which is why diagnostics go through
// describeResolution instead.
type Resolution struct {
	Account string
	Handle  SigningHandle
	Extra   map[string]any
}

// Handshake is the asynchronous redirect-wallet capability. Resolve is
// idempotent per load: it either completes a return from the approval surface
// (returnURL carries completion markers) or starts a fresh authorization.
// RestoreSession resolves a previously persisted session token and returns
// (nil, nil) when none exists.
type Handshake interface {
	Resolve(ctx context.Context, returnURL string) (*Resolution, error)
	RestoreSession(ctx context.Context) (*Resolution, error)
}

// SigningRequest identifies one outstanding out-of-band signing request.
type SigningRequest struct {
	RequestID    string
	ApprovalLink string
}

// SignOutcome is the terminal message of a signing subscription.
type SignOutcome struct {
	Signed bool
	TxID   string
}

// Subscription delivers the terminal outcome of one signing request. Next
// blocks until a terminal message arrives or ctx ends. Close tears the
// channel down and is safe on every exit path.
type Subscription interface {
	Next(ctx context.Context) (SignOutcome, error)
	Close() error
}

// SigningHandle is the capability obtained from a resolved redirect session.
// It is owned exclusively by the live Session and invalidated on logout.
type SigningHandle interface {
	CreateSigningRequest(ctx context.Context, tx map[string]any) (SigningRequest, error)
	Subscribe(ctx context.Context, requestID string) (Subscription, error)
	Close() error
}

// describeResolution extracts diagnostic detail field by field. The resolved
// object can hold live capability references, so it must not be dumped with a
// generic deep serialization.
func describeResolution(res *Resolution) string {
	if res == nil {
		return "resolution=absent"
	}
	var keys []string
	for k := range res.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("account=%s handle=%s extraKeys=[%s]",
		presence(res.Account != ""),
		presence(res.Handle != nil),
		strings.Join(keys, ","))
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

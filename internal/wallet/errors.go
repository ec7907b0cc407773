package wallet

import "errors"

// Connection and submission failure taxonomy. Callers branch with errors.Is;
// wrapping adds detail without losing the category.
var (
	// ErrNotInstalled means the extension capability is absent. Reported with
	// an install link, never retried automatically.
	ErrNotInstalled = errors.New("wallet extension not installed")

	// ErrLocked means the extension is present but exposes no active address.
	ErrLocked = errors.New("wallet extension is locked")

	// ErrNetworkMismatch means the extension is on a different network than
	// configured. The user has to switch manually, there is no auto-switch.
	ErrNetworkMismatch = errors.New("wallet network does not match expected network")

	ErrAlreadyConnected = errors.New("a wallet is already connected")
	ErrNotConnected     = errors.New("no wallet connected")

	// ErrSigningDeclined means the wallet refused to sign the terms message.
	ErrSigningDeclined = errors.New("terms signing declined")

	// ErrRejected means the out-of-band signing request was declined on the
	// approval surface.
	ErrRejected = errors.New("signing request rejected")

	// ErrSubmissionFailed means the wallet returned no transaction identifier.
	ErrSubmissionFailed = errors.New("submission returned no transaction identifier")

	// ErrTimedOut means the out-of-band signing wait exceeded its deadline.
	ErrTimedOut = errors.New("signing request timed out")

	// ErrChannelError means the push channel failed while awaiting a signing
	// outcome.
	ErrChannelError = errors.New("signing channel failure")

	ErrStakeInFlight = errors.New("a stake is already in flight")
)

// InstallURL is surfaced alongside ErrNotInstalled as remediation.
const InstallURL = "https://gemwallet.app"

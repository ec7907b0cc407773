package wallet

// Kind identifies which integration model a session uses.
type Kind int

const (
	ExtensionWallet Kind = iota
	RedirectWallet
)

func (k Kind) String() string {
	switch k {
	case ExtensionWallet:
		return "extension"
	case RedirectWallet:
		return "redirect"
	}
	return "unknown"
}

// Status is the connection state of the single live session.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	StatusError
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Session is the single live wallet connection.
//
// Invariant, enforced by the Manager: SigningHandle is non-nil if and only if
// Kind is RedirectWallet and Status is Connected.
type Session struct {
	Address       string
	Kind          Kind
	Balance       string
	SigningHandle SigningHandle
	Status        Status

	// Err holds the failure detail when Status is StatusError.
	Err error
}

func emptySession() Session {
	return Session{Balance: "0", Status: Disconnected}
}

package wallet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/JamaaOnline/sky-token-staking/internal/config"
	"github.com/JamaaOnline/sky-token-staking/internal/metrics"
)

// Balances is the advisory balance read the manager needs from the ledger.
type Balances interface {
	GetBalance(ctx context.Context, address string) string
}

// Manager owns the single live wallet session and drives both connection
// paths. It is not safe for concurrent use; the staking flow is a sequence of
// suspending calls on one session.
type Manager struct {
	cfg    config.Staking
	ledger Balances
	ext    Extension
	hs     Handshake
	logger *logrus.Logger

	session Session

	// consumed remembers the fingerprint of completion markers already used
	// to finish a handshake, so resolving twice with the same markers does
	// not start a second one.
	consumed string
}

func NewManager(
	cfg config.Staking,
	ledger Balances,
	ext Extension,
	hs Handshake,
	logger *logrus.Logger,
) *Manager {
	return &Manager{
		cfg:     cfg,
		ledger:  ledger,
		ext:     ext,
		hs:      hs,
		logger:  logger,
		session: emptySession(),
	}
}

// Session returns a copy of the live session.
func (m *Manager) Session() Session {
	return m.session
}

// ConnectExtension runs the synchronous extension connection protocol.
func (m *Manager) ConnectExtension(ctx context.Context) (Session, error) {
	if m.session.Status == Connected {
		return m.session, ErrAlreadyConnected
	}
	m.session = Session{Kind: ExtensionWallet, Balance: "0", Status: Connecting}

	if m.ext == nil || !m.ext.IsInstalled(ctx) {
		err := m.fail(fmt.Errorf("%w: install it at %s", ErrNotInstalled, InstallURL))
		return m.session, err
	}

	address, err := m.ext.GetAddress(ctx)
	if err != nil || address == "" {
		err = m.fail(ErrLocked)
		return m.session, err
	}

	network, err := m.ext.GetNetwork(ctx)
	if err != nil {
		err = m.fail(fmt.Errorf("failed to read wallet network: %w", err))
		return m.session, err
	}
	if network != m.cfg.ExpectedNetwork {
		err = m.fail(fmt.Errorf("%w: wallet on %q, expected %q",
			ErrNetworkMismatch, network, m.cfg.ExpectedNetwork))
		return m.session, err
	}

	// Best-effort: GetBalance swallows its own failures into "0".
	balance := m.ledger.GetBalance(ctx, address)

	m.session = Session{
		Address: address,
		Kind:    ExtensionWallet,
		Balance: balance,
		Status:  Connected,
	}
	m.logger.WithFields(logrus.Fields{
		"wallet":  ExtensionWallet.String(),
		"account": address,
	}).Info("wallet connected")
	metrics.ObserveConnect(ExtensionWallet.String(), "connected")
	return m.session, nil
}

// ConnectRedirect starts or completes the redirect handshake. currentURL is
// the URL the process was loaded with; when it carries completion markers the
// handshake is finished from them instead of starting fresh. It returns the
// session and the URL with any consumed markers stripped.
func (m *Manager) ConnectRedirect(ctx context.Context, currentURL string) (Session, string, error) {
	if m.session.Status == Connected {
		return m.session, currentURL, ErrAlreadyConnected
	}
	return m.resolveRedirect(ctx, currentURL)
}

// Resume is the on-load entry point, invoked once per process start before
// anything renders. Completion markers on the current URL finish an in-flight
// handshake; otherwise a persisted session token is silently restored. With
// neither, the session stays Disconnected and no error is reported.
func (m *Manager) Resume(ctx context.Context, currentURL string) (Session, string, error) {
	if m.session.Status == Connected {
		return m.session, currentURL, nil
	}

	if HasCompletionMarker(currentURL, m.cfg.Redirect.Markers) {
		return m.resolveRedirect(ctx, currentURL)
	}

	res, err := m.hs.RestoreSession(ctx)
	if err != nil {
		// Restore is the silent "remember me" path; a failure here means no
		// session, not a user-facing error.
		m.logger.WithError(err).Debug("session restore failed")
		return m.session, currentURL, nil
	}
	if res == nil {
		return m.session, currentURL, nil
	}

	m.session = Session{Kind: RedirectWallet, Balance: "0", Status: Connecting}
	if err := m.completeRedirect(ctx, res); err != nil {
		return m.session, currentURL, err
	}
	return m.session, currentURL, nil
}

func (m *Manager) resolveRedirect(ctx context.Context, currentURL string) (Session, string, error) {
	values := markerValues(currentURL, m.cfg.Redirect.Markers)
	fingerprint := markerFingerprint(values)
	if fingerprint != "" && fingerprint == m.consumed {
		// These markers already completed a handshake; do not submit another.
		return m.session, StripMarkers(currentURL, m.cfg.Redirect.Markers), nil
	}

	m.session = Session{Kind: RedirectWallet, Balance: "0", Status: Connecting}

	res, err := m.hs.Resolve(ctx, currentURL)
	if err != nil {
		err = m.fail(fmt.Errorf("redirect handshake failed: %w", err))
		return m.session, currentURL, err
	}
	if err := m.completeRedirect(ctx, res); err != nil {
		return m.session, currentURL, err
	}

	if fingerprint != "" {
		m.consumed = fingerprint
	}
	return m.session, StripMarkers(currentURL, m.cfg.Redirect.Markers), nil
}

func (m *Manager) completeRedirect(ctx context.Context, res *Resolution) error {
	if res == nil || res.Account == "" || res.Handle == nil {
		return m.fail(fmt.Errorf("redirect session missing account data: %s", describeResolution(res)))
	}

	balance := m.ledger.GetBalance(ctx, res.Account)

	m.session = Session{
		Address:       res.Account,
		Kind:          RedirectWallet,
		Balance:       balance,
		SigningHandle: res.Handle,
		Status:        Connected,
	}
	m.logger.WithFields(logrus.Fields{
		"wallet":  RedirectWallet.String(),
		"account": res.Account,
	}).Info("wallet connected")
	metrics.ObserveConnect(RedirectWallet.String(), "connected")
	return nil
}

// Logout tears the session down. Safe with no active session. Server-side
// revocation is the approval surface's responsibility, not ours.
func (m *Manager) Logout() {
	if m.session.SigningHandle != nil {
		if err := m.session.SigningHandle.Close(); err != nil {
			m.logger.WithError(err).Debug("failed to close signing handle")
		}
	}
	m.session = emptySession()
	// consumed survives logout: a stale URL must not re-submit a one-time
	// token that already completed a handshake.
}

// UpdateBalance applies a refreshed balance to the live session. Applying to
// a session that no longer exists, or that reconnected as a different
// account, is a no-op.
func (m *Manager) UpdateBalance(address, balance string) {
	if m.session.Status != Connected || m.session.Address != address {
		return
	}
	m.session.Balance = balance
}

func (m *Manager) fail(err error) error {
	m.session.Status = StatusError
	m.session.Err = err
	m.session.SigningHandle = nil
	m.logger.WithError(err).Warn("wallet connection failed")
	metrics.ObserveConnect(m.session.Kind.String(), "failed")
	return err
}

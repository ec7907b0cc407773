package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JamaaOnline/sky-token-staking/internal/amount"
	"github.com/JamaaOnline/sky-token-staking/internal/config"
	"github.com/JamaaOnline/sky-token-staking/internal/metrics"
	"github.com/JamaaOnline/sky-token-staking/internal/payment"
	"github.com/JamaaOnline/sky-token-staking/internal/terms"
	"github.com/JamaaOnline/sky-token-staking/internal/wallet"
	"github.com/JamaaOnline/sky-token-staking/internal/xrpl"
)

// Validation failures, each distinct and surfaced before any side-effecting
// call. None is retried automatically.
var (
	ErrTermsNotAccepted    = errors.New("terms of service not accepted")
	ErrZeroBalance         = errors.New("no token balance to stake")
	ErrInvalidAmount       = errors.New("stake amount must be a positive number")
	ErrInsufficientBalance = errors.New("stake amount exceeds balance")
)

// signingWait bounds the out-of-band signing subscription.
const signingWait = 2 * time.Minute

// Result reports a submitted stake. Finalized is advisory: the stake already
// succeeded when TxID is set, regardless of whether the finality poll
// observed validation in time.
type Result struct {
	TxID      string
	Finalized bool
	Balance   string
}

// Orchestrator drives one stake attempt end to end: validate, sign terms,
// build payment, submit via the connected wallet path, poll for finality,
// refresh the balance.
type Orchestrator struct {
	cfg     config.Staking
	manager *wallet.Manager
	signer  *terms.Signer
	builder *payment.Builder
	ledger  xrpl.Ledger
	ext     wallet.Extension
	logger  *logrus.Logger

	// Navigate, when set, is invoked with the approval link of a redirect
	// signing request. A mobile host navigates away here; the outcome still
	// arrives over the push channel.
	Navigate func(link string)

	inFlight bool
	waitFor  time.Duration
}

func NewOrchestrator(
	cfg config.Staking,
	manager *wallet.Manager,
	signer *terms.Signer,
	builder *payment.Builder,
	ledger xrpl.Ledger,
	ext wallet.Extension,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		manager: manager,
		signer:  signer,
		builder: builder,
		ledger:  ledger,
		ext:     ext,
		logger:  logger,
		waitFor: signingWait,
	}
}

// Stake performs one stake attempt. Exactly one attempt may be in flight per
// session; re-entrant calls fail with ErrStakeInFlight.
func (o *Orchestrator) Stake(ctx context.Context, value string, termsAccepted bool) (Result, error) {
	if o.inFlight {
		return Result{}, wallet.ErrStakeInFlight
	}
	o.inFlight = true
	defer func() { o.inFlight = false }()

	sess := o.manager.Session()
	if err := o.validate(sess, value, termsAccepted); err != nil {
		metrics.ObserveStake("validation_failed")
		return Result{}, err
	}

	artifact, err := o.signer.Sign(ctx, sess)
	if err != nil {
		metrics.ObserveStake("signing_failed")
		return Result{}, err
	}

	pay, err := o.builder.Build(sess.Address, value, artifact)
	if err != nil {
		metrics.ObserveStake("build_failed")
		return Result{}, err
	}

	log := o.logger.WithFields(logrus.Fields{
		"attempt": uuid.NewString(),
		"wallet":  sess.Kind.String(),
		"account": sess.Address,
		"amount":  value,
	})

	// Best-effort: the canonical serialization is diagnostic only, the wallet
	// signs from tx-json.
	if blob, cerr := pay.CanonicalBytes(); cerr == nil {
		log = log.WithField("tx_bytes", len(blob))
	}

	var txID string
	switch sess.Kind {
	case wallet.ExtensionWallet:
		txID, err = o.submitExtension(ctx, pay)
	case wallet.RedirectWallet:
		txID, err = o.submitRedirect(ctx, sess, pay, log)
	default:
		err = fmt.Errorf("unknown wallet kind: %v", sess.Kind)
	}
	if err != nil {
		metrics.ObserveStake("submission_failed")
		log.WithError(err).Warn("stake submission failed")
		return Result{}, err
	}

	// The stake succeeded the moment the wallet returned a transaction
	// identifier. Everything past this point is advisory and must never turn
	// the outcome into a failure.
	metrics.ObserveStake("submitted")
	log.WithField("tx", txID).Info("stake submitted")

	finalized := o.ledger.WaitForFinality(ctx, txID)
	metrics.ObserveFinality(finalized)
	if !finalized {
		log.WithField("tx", txID).Warn("stake not yet observed as validated")
	}

	refreshed := o.ledger.GetBalance(ctx, sess.Address)
	o.manager.UpdateBalance(sess.Address, refreshed)

	return Result{TxID: txID, Finalized: finalized, Balance: refreshed}, nil
}

func (o *Orchestrator) validate(sess wallet.Session, value string, termsAccepted bool) error {
	if !termsAccepted {
		return ErrTermsNotAccepted
	}
	if sess.Status != wallet.Connected {
		return wallet.ErrNotConnected
	}

	balance, err := amount.Parse(sess.Balance)
	if err != nil || !amount.Positive(balance) {
		return ErrZeroBalance
	}

	if err := o.cfg.Validate(); err != nil {
		return err
	}

	amt, err := amount.Parse(value)
	if err != nil || !amount.Positive(amt) {
		return ErrInvalidAmount
	}
	if !amount.LessOrEqual(amt, balance) {
		return ErrInsufficientBalance
	}
	return nil
}

func (o *Orchestrator) submitExtension(ctx context.Context, pay payment.Payment) (string, error) {
	if o.ext == nil {
		return "", wallet.ErrNotInstalled
	}
	res, err := o.ext.SendPayment(ctx, pay.TxJSON())
	if err != nil {
		return "", fmt.Errorf("%w: %v", wallet.ErrSubmissionFailed, err)
	}
	if res.Hash == "" {
		return "", wallet.ErrSubmissionFailed
	}
	return res.Hash, nil
}

// submitRedirect creates an out-of-band signing request and awaits exactly
// one terminal message, bounded by the signing deadline. The subscription is
// torn down on every exit path.
func (o *Orchestrator) submitRedirect(
	ctx context.Context,
	sess wallet.Session,
	pay payment.Payment,
	log *logrus.Entry,
) (string, error) {
	req, err := sess.SigningHandle.CreateSigningRequest(ctx, pay.TxJSON())
	if err != nil {
		return "", fmt.Errorf("%w: %v", wallet.ErrSubmissionFailed, err)
	}
	log.WithField("request", req.RequestID).Debug("signing request created")

	if o.Navigate != nil {
		o.Navigate(req.ApprovalLink)
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.waitFor)
	defer cancel()

	sub, err := sess.SigningHandle.Subscribe(waitCtx, req.RequestID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", wallet.ErrChannelError, err)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			log.WithError(cerr).Debug("failed to close signing subscription")
		}
	}()

	outcome, err := sub.Next(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", wallet.ErrTimedOut
		}
		if errors.Is(err, wallet.ErrChannelError) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", wallet.ErrChannelError, err)
	}

	if !outcome.Signed {
		return "", wallet.ErrRejected
	}
	if outcome.TxID == "" {
		return "", wallet.ErrSubmissionFailed
	}
	return outcome.TxID, nil
}

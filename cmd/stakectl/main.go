package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/JamaaOnline/sky-token-staking/internal/logging"
	"github.com/JamaaOnline/sky-token-staking/internal/metrics"
	"github.com/JamaaOnline/sky-token-staking/internal/payment"
	"github.com/JamaaOnline/sky-token-staking/internal/staking"
	"github.com/JamaaOnline/sky-token-staking/internal/terms"
	"github.com/JamaaOnline/sky-token-staking/internal/wallet"
	"github.com/JamaaOnline/sky-token-staking/internal/xrpl"
	"github.com/JamaaOnline/sky-token-staking/internal/xumm"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urlFlag := flag.String("url", "", "current URL, carrying redirect-completion markers when returning from the approval surface")
	acceptTerms := flag.Bool("accept-terms", false, "accept the staking terms of service")
	flag.Parse()

	cfg, err := newConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogFormat)
	metrics.RegisterMetrics(logger)

	if err := cfg.Staking.Validate(); err != nil {
		logger.Warnf("%v; staking submission is disabled until configured", err)
	}

	ledger := xrpl.NewClient(cfg.Staking.LedgerRPC, cfg.Staking.TokenCurrency, cfg.Staking.TokenIssuer, logger)

	redirect := xumm.NewClient(cfg.Staking.Redirect, logger)
	redirect.OnApprovalLink = func(link string) {
		fmt.Printf("Approve the sign-in in your wallet app: %s\n", link)
	}

	// No extension capability is reachable from a terminal; the extension
	// path reports not-installed and the redirect path carries the CLI.
	manager := wallet.NewManager(cfg.Staking, ledger, nil, redirect, logger)
	signer := terms.NewSigner(nil)
	builder := payment.NewBuilder(cfg.Staking)

	orch := staking.NewOrchestrator(cfg.Staking, manager, signer, builder, ledger, nil, logger)
	orch.Navigate = func(link string) {
		fmt.Printf("Approve the stake in your wallet app: %s\n", link)
	}

	if err := run(ctx, flag.Args(), *urlFlag, *acceptTerms, manager, orch, ledger, redirect); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(
	ctx context.Context,
	args []string,
	currentURL string,
	acceptTerms bool,
	manager *wallet.Manager,
	orch *staking.Orchestrator,
	ledger xrpl.Ledger,
	redirect *xumm.Client,
) error {
	// Resume before anything else: completion markers on the URL finish an
	// in-flight handshake, a persisted token restores silently.
	sess, _, err := manager.Resume(ctx, currentURL)
	if err != nil {
		return fmt.Errorf("session resume failed: %w", err)
	}

	if len(args) == 0 {
		printSession(sess)
		return nil
	}

	switch args[0] {
	case "connect":
		sess, _, err = manager.ConnectRedirect(ctx, currentURL)
		if err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
		printSession(sess)
		return nil

	case "balance":
		if sess.Status != wallet.Connected {
			return wallet.ErrNotConnected
		}
		balance := ledger.GetBalance(ctx, sess.Address)
		manager.UpdateBalance(sess.Address, balance)
		fmt.Printf("%s\n", balance)
		return nil

	case "stake":
		if len(args) < 2 {
			return fmt.Errorf("usage: stakectl stake <amount>")
		}
		if sess.Status != wallet.Connected {
			sess, _, err = manager.ConnectRedirect(ctx, currentURL)
			if err != nil {
				return fmt.Errorf("connect failed: %w", err)
			}
		}
		result, err := orch.Stake(ctx, args[1], acceptTerms)
		if err != nil {
			return fmt.Errorf("stake failed: %w", err)
		}
		fmt.Printf("staked, tx %s (validated: %v), balance %s\n",
			result.TxID, result.Finalized, result.Balance)
		return nil

	case "logout":
		manager.Logout()
		if err := redirect.ForgetSession(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	}

	return fmt.Errorf("unknown command: %s (want connect, balance, stake, logout)", args[0])
}

func printSession(sess wallet.Session) {
	if sess.Status != wallet.Connected {
		fmt.Printf("status: %s\n", sess.Status)
		if sess.Err != nil {
			fmt.Printf("error: %v\n", sess.Err)
		}
		return
	}
	fmt.Printf("status: %s\nwallet: %s\naccount: %s\nbalance: %s\n",
		sess.Status, sess.Kind, sess.Address, sess.Balance)
}

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	connectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staking",
			Name:      "wallet_connect_total",
			Help:      "Wallet connection attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	stakeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staking",
			Name:      "stake_total",
			Help:      "Stake attempts by outcome",
		},
		[]string{"outcome"},
	)

	finalityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staking",
			Name:      "finality_total",
			Help:      "Finality poll results for submitted stakes",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the staking collectors on the default registry.
func RegisterMetrics(logger *logrus.Logger) {
	registerIfNotExists(connectTotal, "wallet_connect_total", logger)
	registerIfNotExists(stakeTotal, "stake_total", logger)
	registerIfNotExists(finalityTotal, "finality_total", logger)
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, logger *logrus.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

// ObserveConnect records one connection attempt.
func ObserveConnect(kind, outcome string) {
	connectTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveStake records one stake attempt outcome.
func ObserveStake(outcome string) {
	stakeTotal.WithLabelValues(outcome).Inc()
}

// ObserveFinality records a finality poll result.
func ObserveFinality(validated bool) {
	result := "validated"
	if !validated {
		result = "unconfirmed"
	}
	finalityTotal.WithLabelValues(result).Inc()
}

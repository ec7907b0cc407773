package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	staking_config "github.com/JamaaOnline/sky-token-staking/internal/config"
	"github.com/JamaaOnline/sky-token-staking/internal/logging"
)

type config struct {
	LogFormat logging.LogFormat `envconfig:"LOG_FORMAT" default:"text"`
	Staking   staking_config.Staking
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}

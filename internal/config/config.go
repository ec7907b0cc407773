package config

import (
	"fmt"
	"strings"
)

// Staking holds everything a staking session needs: the tracked token, the
// staking destination, the expected ledger network and the two wallet
// integration endpoints. Loaded with envconfig by each cmd.
type Staking struct {
	TokenCurrency      string `envconfig:"TOKEN_CURRENCY" default:"SKY"`
	TokenIssuer        string `envconfig:"TOKEN_ISSUER"`
	StakingDestination string `envconfig:"STAKING_DESTINATION"`
	ExpectedNetwork    string `envconfig:"EXPECTED_NETWORK" default:"Mainnet"`
	LedgerRPC          string `envconfig:"LEDGER_RPC" default:"https://xrplcluster.com"`

	Redirect Redirect
}

// Redirect configures the redirect-wallet handshake client.
type Redirect struct {
	APIKey         string `envconfig:"REDIRECT_API_KEY"`
	Target         string `envconfig:"REDIRECT_TARGET"`
	PersistSession bool   `envconfig:"REDIRECT_PERSIST_SESSION" default:"true"`
	SessionFile    string `envconfig:"REDIRECT_SESSION_FILE" default:".staking-session"`

	// Markers are the query parameter names whose presence on the current
	// URL means an external approval surface redirected back to us.
	Markers []string `envconfig:"REDIRECT_MARKERS" default:"xAppToken,payloadId,ott"`
}

// ConfigurationError reports required settings that are absent. It blocks
// submission but is never fatal to the process.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("staking configuration incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// Validate checks the settings a submission cannot proceed without.
func (c Staking) Validate() error {
	var missing []string
	if c.TokenIssuer == "" {
		missing = append(missing, "TOKEN_ISSUER")
	}
	if c.StakingDestination == "" {
		missing = append(missing, "STAKING_DESTINATION")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

package terms

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/JamaaOnline/sky-token-staking/internal/wallet"
)

// Disclosure is the fixed terms-of-service text the user attests to.
const Disclosure = "I have read and agree to the SKY token staking terms of service."

// maxArtifactLen bounds the derived artifact so it fits the payment memo
// field after hex encoding.
const maxArtifactLen = 128

// Artifact is the opaque terms-signature proof. It is injected into a payment
// memo unmodified.
type Artifact string

// Signer produces the terms signature, polymorphic over wallet capability.
type Signer struct {
	ext wallet.Extension
	now func() time.Time
}

func NewSigner(ext wallet.Extension) *Signer {
	return &Signer{
		ext: ext,
		now: time.Now,
	}
}

// Sign produces the artifact for the session's wallet kind.
//
// Extension wallets sign the disclosure interactively. Redirect wallets get a
// deterministic derivation instead: the user's approval happens later on the
// payment itself, so no up-front signing round trip is performed.
func (s *Signer) Sign(ctx context.Context, sess wallet.Session) (Artifact, error) {
	switch sess.Kind {
	case wallet.ExtensionWallet:
		if s.ext == nil {
			return "", wallet.ErrNotInstalled
		}
		sig, err := s.ext.SignMessage(ctx, Disclosure)
		if err != nil {
			return "", fmt.Errorf("%w: %v", wallet.ErrSigningDeclined, err)
		}
		if sig == "" {
			return "", wallet.ErrSigningDeclined
		}
		return Artifact(sig), nil

	case wallet.RedirectWallet:
		return s.derive(sess.Address), nil
	}
	return "", fmt.Errorf("unknown wallet kind: %v", sess.Kind)
}

// derive builds a bounded artifact from the disclosure, the address and the
// current time: timestamp dot sha512-half of the preimage.
func (s *Signer) derive(address string) Artifact {
	ts := s.now().UTC().Format(time.RFC3339)
	preimage := fmt.Sprintf("%s|%s|%s", Disclosure, address, ts)
	sum := sha512.Sum512([]byte(preimage))

	artifact := fmt.Sprintf("%s.%s", ts, hex.EncodeToString(sum[:32]))
	if len(artifact) > maxArtifactLen {
		artifact = artifact[:maxArtifactLen]
	}
	return Artifact(artifact)
}

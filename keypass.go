// Package keypass verifies wallet sign-in challenges and derives did:key
// identifiers for Substrate and EVM accounts.
//
// The facade wires the message, chain, did and verifier packages from one
// config.Config; use those packages directly for finer control.
package keypass

import (
	"context"

	"github.com/pilacorp/go-keypass-sdk/config"
	"github.com/pilacorp/go-keypass-sdk/did"
	"github.com/pilacorp/go-keypass-sdk/message"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

// NewVerifier creates a unified verification service from cfg. A nil cfg
// uses the defaults. Options are applied after the config derived ones.
func NewVerifier(cfg *config.Config, options ...verifier.Option) *verifier.Service {
	cfg = orDefault(cfg)
	base := []verifier.Option{
		verifier.WithReplayGuard(message.NewReplayGuard(
			message.WithMaxAge(cfg.MaxMessageAge),
			message.WithClockSkew(cfg.ClockSkew),
		)),
		verifier.WithBackend(verifier.NewSubstrateBackend(cfg.SS58Prefix)),
	}
	return verifier.NewUnified(append(base, options...)...)
}

// NewResolver creates a did:key resolver for both chain families.
func NewResolver(cfg *config.Config) *did.Resolver {
	return did.NewDefaultResolver(orDefault(cfg).SS58Prefix)
}

// NewChallengeIssuer creates an issuer of challenge messages.
func NewChallengeIssuer(options ...message.IssuerOption) *message.Issuer {
	return message.NewIssuer(options...)
}

// VerifySignature verifies req with the default configuration.
func VerifySignature(ctx context.Context, req verifier.Request) *verifier.Response {
	return NewVerifier(nil).VerifySignature(ctx, req)
}

func orDefault(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.New(config.Config{})
	}
	return cfg
}

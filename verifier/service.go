// Package verifier runs the sign-in verification pipeline: request shape,
// message grammar, freshness, chain routing, address and signature format,
// tamper check, signature verification and DID derivation. The first failing
// stage decides the response code.
package verifier

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/chain/evm"
	"github.com/pilacorp/go-keypass-sdk/chain/substrate"
	"github.com/pilacorp/go-keypass-sdk/did"
	"github.com/pilacorp/go-keypass-sdk/message"
)

// SignatureVerifier checks addresses and signatures of one chain family.
type SignatureVerifier interface {
	ValidateAddress(address string) error
	ValidateSignature(signature string) error
	Verify(message, signature, address string) bool
}

// Backend bundles the family specific stages of the pipeline.
type Backend interface {
	SignatureVerifier
	Family() chain.Family
	DID() did.Provider
}

type backend struct {
	SignatureVerifier
	provider did.Provider
}

func (b *backend) Family() chain.Family { return b.provider.Family() }

func (b *backend) DID() did.Provider { return b.provider }

// NewBackend pairs a signature verifier with the DID provider of its family.
func NewBackend(v SignatureVerifier, provider did.Provider) Backend {
	return &backend{SignatureVerifier: v, provider: provider}
}

// NewSubstrateBackend creates the Substrate backend. Recovered addresses are
// re-encoded with ss58Prefix when DIDs are resolved.
func NewSubstrateBackend(ss58Prefix uint16, options ...substrate.Option) Backend {
	return NewBackend(substrate.NewVerifier(options...), did.NewSubstrateProvider(ss58Prefix))
}

// NewEVMBackend creates the EVM backend.
func NewEVMBackend(options ...evm.Option) Backend {
	return NewBackend(evm.NewVerifier(options...), did.NewEVMProvider())
}

// Service verifies sign-in requests. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	logger   zerolog.Logger
	guard    *message.ReplayGuard
	backends map[chain.Family]Backend

	// fixed is set for single-family services, which skip routing and do
	// not stamp data.chainType.
	fixed chain.Family
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithReplayGuard replaces the default freshness window.
func WithReplayGuard(guard *message.ReplayGuard) Option {
	return func(s *Service) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// WithBackend registers b for its family, replacing the default one.
func WithBackend(b Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.backends[b.Family()] = b
		}
	}
}

func newService(options ...Option) *Service {
	s := &Service{
		logger: log.Logger,
		guard:  message.NewReplayGuard(),
		backends: map[chain.Family]Backend{
			chain.Substrate: NewSubstrateBackend(substrate.DefaultPrefix),
			chain.EVM:       NewEVMBackend(),
		},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// NewUnified creates a Service that routes each request by its chainType
// hint or address shape, and stamps the resolved family into data.chainType.
func NewUnified(options ...Option) *Service {
	return newService(options...)
}

// NewForFamily creates a Service bound to one family. The request's
// chainType hint is ignored.
func NewForFamily(family chain.Family, options ...Option) (*Service, error) {
	if !family.Valid() {
		return nil, fmt.Errorf("%w: %q", chain.ErrUnsupportedChainType, family)
	}
	s := newService(options...)
	s.fixed = family
	return s, nil
}

// Backend returns the backend registered for family.
func (s *Service) Backend(family chain.Family) (Backend, bool) {
	b, ok := s.backends[family]
	return b, ok
}

// VerifySignature runs the pipeline and always returns a response. Panics
// from collaborators are recovered and reported as INTERNAL_ERROR.
func (s *Service) VerifySignature(ctx context.Context, req Request) *Response {
	resp, _ := s.Evaluate(ctx, req)
	return resp
}

// Evaluate is VerifySignature that also returns the family the request was
// routed to. The family is empty when the pipeline failed before routing.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Response, chain.Family) {
	didValue, family, err := s.Verify(ctx, req)
	if err != nil {
		return ErrorResponse(err), family
	}

	var data map[string]any
	if s.fixed == "" {
		data = map[string]any{"chainType": family.String()}
	}
	return successResponse(didValue, data), family
}

// Verify runs the pipeline and returns the DID of the verified signer and
// its family. Failures are *Error values.
func (s *Service) Verify(ctx context.Context, req Request) (didValue string, family chain.Family, err error) {
	logger := s.loggerFor(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("address", req.Address).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Signature verification panicked")
			didValue, family = "", ""
			err = newError(CodeInternalError, "Internal error", fmt.Errorf("panic: %v", r))
		}
	}()

	didValue, family, verr := s.run(req)
	if verr != nil {
		event := logger.Debug()
		if verr.Code == CodeInternalError || verr.Code == CodeDIDCreationFailed {
			event = logger.Error()
		}
		event.Err(verr.Err).
			Str("code", string(verr.Code)).
			Str("address", req.Address).
			Str("chain_type", family.String()).
			Msg("Signature verification failed")
		return "", family, verr
	}

	logger.Debug().
		Str("address", req.Address).
		Str("chain_type", family.String()).
		Str("did", didValue).
		Msg("Signature verified")
	return didValue, family, nil
}

func (s *Service) run(req Request) (string, chain.Family, *Error) {
	if err := checkShape(req); err != nil {
		return "", "", err
	}

	fields, err := message.Parse(req.Message)
	if err != nil {
		return "", "", fromMessageError(err)
	}
	if err := s.guard.Check(fields.IssuedAt); err != nil {
		return "", "", fromMessageError(err)
	}

	family, err := s.route(req)
	if err != nil {
		return "", "", fromRoutingError(err)
	}
	b, ok := s.backends[family]
	if !ok {
		return "", family, newError(CodeUnsupportedChainType, "Unsupported chain type", fmt.Errorf("%w: no backend for %s", chain.ErrUnsupportedChainType, family))
	}

	if err := b.ValidateAddress(req.Address); err != nil {
		return "", family, newError(CodeInvalidAddress, "Invalid address", err)
	}
	if err := b.ValidateSignature(req.Signature); err != nil {
		return "", family, fromSignatureFormatError(err)
	}
	if err := message.CheckAddress(fields, req.Address, family); err != nil {
		return "", family, fromMessageError(err)
	}
	if !b.Verify(req.Message, req.Signature, req.Address) {
		return "", family, newError(CodeVerificationFailed, "Invalid signature", nil)
	}

	didValue, err := b.DID().CreateDID(req.Address)
	if err != nil {
		return "", family, newError(CodeDIDCreationFailed, "Failed to create DID", err)
	}
	return didValue, family, nil
}

func (s *Service) route(req Request) (chain.Family, error) {
	if s.fixed != "" {
		return s.fixed, nil
	}
	return chain.Resolve(req.Address, req.ChainType)
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &s.logger
}

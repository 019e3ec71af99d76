// Package server exposes the verification pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/config"
	"github.com/pilacorp/go-keypass-sdk/did"
	"github.com/pilacorp/go-keypass-sdk/message"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

// Server is the HTTP front of the verification service.
type Server struct {
	Echo    *echo.Echo
	Config  *config.Config
	Metrics *Metrics

	clock    time2.Clock
	logger   zerolog.Logger
	nonces   message.NonceSource
	backends []verifier.Backend

	unified  *verifier.Service
	single   map[chain.Family]*verifier.Service
	resolver *did.Resolver
	issuer   *message.Issuer
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for freshness checks and issued challenges.
func WithClock(clock time2.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithLogger sets the base logger for request logs and server lifecycle.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNonceSource replaces the UUID nonces of issued challenges.
func WithNonceSource(nonces message.NonceSource) Option {
	return func(s *Server) {
		s.nonces = nonces
	}
}

// WithBackend replaces the backend of b's family.
func WithBackend(b verifier.Backend) Option {
	return func(s *Server) {
		s.backends = append(s.backends, b)
	}
}

// New wires the verification services, the DID resolver and the HTTP
// routes. A nil cfg uses the defaults.
func New(cfg *config.Config, options ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.New(config.Config{})
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		Config:  cfg,
		Metrics: NewMetrics(),
		clock:   time2.DefaultClock,
		logger:  log.Logger,
		nonces:  message.UUIDNonces{},
	}
	for _, option := range options {
		option(s)
	}

	guard := message.NewReplayGuard(
		message.WithClock(s.clock),
		message.WithMaxAge(cfg.MaxMessageAge),
		message.WithClockSkew(cfg.ClockSkew),
	)
	serviceOptions := []verifier.Option{
		verifier.WithLogger(s.logger),
		verifier.WithReplayGuard(guard),
		verifier.WithBackend(verifier.NewSubstrateBackend(cfg.SS58Prefix)),
	}
	for _, b := range s.backends {
		serviceOptions = append(serviceOptions, verifier.WithBackend(b))
	}

	s.unified = verifier.NewUnified(serviceOptions...)
	s.single = make(map[chain.Family]*verifier.Service)
	providers := make([]did.Provider, 0, len(chain.Families()))
	for _, family := range chain.Families() {
		svc, err := verifier.NewForFamily(family, serviceOptions...)
		if err != nil {
			return nil, err
		}
		s.single[family] = svc

		if b, ok := s.unified.Backend(family); ok {
			providers = append(providers, b.DID())
		}
	}
	s.resolver = did.NewResolver(providers...)
	s.issuer = message.NewIssuer(message.WithIssuerClock(s.clock), message.WithNonceSource(s.nonces))

	s.initEcho()
	s.http = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the traced HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Echo, "keypass")
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.Config.ListenAddress).Msg("Starting server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Warn().Msg("Shutting down server")

	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("Failed to shutdown http server")
		return err
	}
	return nil
}

package message

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
)

// NonceSource produces unique opaque nonces.
type NonceSource interface {
	Nonce() (string, error)
}

// UUIDNonces produces random UUIDv4 nonces without dashes.
type UUIDNonces struct{}

// Nonce returns a fresh nonce.
func (UUIDNonces) Nonce() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// Challenge is a rendered challenge message and the values it carries.
type Challenge struct {
	Message  string    `json:"message"`
	Address  string    `json:"address"`
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Issuer renders fresh challenge messages.
type Issuer struct {
	template string
	clock    time2.Clock
	nonces   NonceSource
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithTemplate sets the message template.
func WithTemplate(template string) IssuerOption {
	return func(i *Issuer) { i.template = template }
}

// WithIssuerClock sets the clock stamping IssuedAt.
func WithIssuerClock(clock time2.Clock) IssuerOption {
	return func(i *Issuer) { i.clock = clock }
}

// WithNonceSource sets the nonce source.
func WithNonceSource(nonces NonceSource) IssuerOption {
	return func(i *Issuer) { i.nonces = nonces }
}

// NewIssuer creates an Issuer using DefaultTemplate and UUID nonces.
func NewIssuer(options ...IssuerOption) *Issuer {
	i := &Issuer{
		template: DefaultTemplate,
		clock:    time2.DefaultClock,
		nonces:   UUIDNonces{},
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Issue renders a challenge for address.
func (i *Issuer) Issue(address string) (*Challenge, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	nonce, err := i.nonces.Nonce()
	if err != nil {
		return nil, err
	}
	issuedAt := i.clock.Now().UTC().Truncate(time.Millisecond)

	msg := Build(Params{
		Template: i.template,
		Address:  address,
		Nonce:    nonce,
		IssuedAt: issuedAt,
	})
	if _, err := Parse(msg); err != nil {
		return nil, fmt.Errorf("rendered challenge is not valid: %w", err)
	}

	return &Challenge{
		Message:  msg,
		Address:  address,
		Nonce:    nonce,
		IssuedAt: issuedAt,
	}, nil
}

// Package evm verifies personal-message signatures of EVM accounts.
package evm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-keypass-sdk/chain"
)

// SignatureSize is the size of an r || s || v signature.
const SignatureSize = crypto.SignatureLength

var (
	ErrInvalidAddress       = errors.New("invalid evm address")
	ErrInvalidRecoveryID    = errors.New("invalid recovery id")
	ErrInvalidSignatureSize = errors.New("invalid signature size")
)

// IsValidAddress reports whether address is a 0x-prefixed 20-byte hex address.
func IsValidAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// NormalizeAddress returns the lowercase form of address.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

// Recoverer recovers the signer of a message.
type Recoverer interface {
	RecoverAddress(message, signature []byte) (common.Address, error)
}

// PersonalRecoverer recovers signers of EIP-191 personal messages, the
// scheme wallets use for personal_sign.
type PersonalRecoverer struct{}

// RecoverAddress returns the address that signed message. The recovery byte
// may be 0/1 or 27/28.
func (PersonalRecoverer) RecoverAddress(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureSize {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignatureSize, SignatureSize, len(signature))
	}

	sig := make([]byte, SignatureSize)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, signature[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verifier verifies EVM sign-in signatures.
type Verifier struct {
	recoverer Recoverer
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRecoverer replaces the personal-message recoverer.
func WithRecoverer(r Recoverer) Option {
	return func(v *Verifier) { v.recoverer = r }
}

// NewVerifier creates a Verifier using PersonalRecoverer.
func NewVerifier(options ...Option) *Verifier {
	v := &Verifier{recoverer: PersonalRecoverer{}}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// ValidateAddress checks the address shape.
func (v *Verifier) ValidateAddress(address string) error {
	if !IsValidAddress(address) {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	return nil
}

// ValidateSignature checks the 0x-prefixed 65-byte hex shape of signature.
func (v *Verifier) ValidateSignature(signature string) error {
	_, err := chain.DecodeSignature(signature, SignatureSize)
	return err
}

// Verify reports whether the signer recovered from signature over message is
// address, compared case-insensitively. Recovery errors and panics yield
// false.
func (v *Verifier) Verify(message, signature, address string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	sig, err := chain.DecodeSignature(signature, SignatureSize)
	if err != nil {
		return false
	}
	recovered, err := v.recoverer.RecoverAddress([]byte(message), sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered.Hex(), address)
}

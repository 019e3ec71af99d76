// Package chain decides which chain family governs a sign-in request.
//
// Two families are known: Substrate accounts (SS58 addresses, sr25519 or
// ed25519 signatures) and EVM accounts (0x-prefixed 20-byte addresses,
// secp256k1 personal-message signatures).
package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Family is a chain family. Its string value is the wire value of the
// request's chainType field.
type Family string

// Known chain families.
const (
	Substrate Family = "polkadot"
	EVM       Family = "ethereum"
)

var (
	ErrUnsupportedChainType   = errors.New("unsupported chain type")
	ErrUnknownAddressFormat   = errors.New("unknown address format")
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrInvalidSignatureLength = errors.New("invalid signature length")
)

var (
	evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	// base58 alphabet without 0, O, I and l
	substrateAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{47,48}$`)
)

// Families lists the known families in routing order.
func Families() []Family {
	return []Family{EVM, Substrate}
}

// String returns the wire value of the family.
func (f Family) String() string {
	return string(f)
}

// Valid reports whether f is one of the known families.
func (f Family) Valid() bool {
	return f == Substrate || f == EVM
}

// ParseFamily parses a chain name given by an operator, such as a URL path
// segment or a CLI flag. The wire values "polkadot" and "ethereum" are
// accepted along with the aliases "substrate" and "evm", case-insensitively.
func ParseFamily(hint string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "polkadot", "substrate":
		return Substrate, nil
	case "ethereum", "evm":
		return EVM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChainType, hint)
	}
}

// Detect infers the family from the shape of the address. The EVM pattern is
// checked first; an address matching neither shape is rejected instead of
// guessed.
func Detect(address string) (Family, error) {
	switch {
	case evmAddressPattern.MatchString(address):
		return EVM, nil
	case substrateAddressPattern.MatchString(address):
		return Substrate, nil
	default:
		return "", ErrUnknownAddressFormat
	}
}

// Resolve returns the family for a request. A non-empty hint wins
// unconditionally and is not cross-checked against the address shape. Only
// the exact wire values "polkadot" and "ethereum" are accepted as hints.
func Resolve(address, hint string) (Family, error) {
	if hint != "" {
		if f := Family(hint); f.Valid() {
			return f, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChainType, hint)
	}
	return Detect(address)
}

// DecodeSignature decodes a 0x-prefixed hex signature of exactly size bytes.
// A missing prefix or a non-hex character is a format error; a well-formed
// string of the wrong length is a length error.
func DecodeSignature(signature string, size int) ([]byte, error) {
	if !strings.HasPrefix(signature, "0x") {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrInvalidSignatureFormat)
	}
	digits := signature[2:]
	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return nil, fmt.Errorf("%w: non-hex character at position %d", ErrInvalidSignatureFormat, i+2)
		}
	}
	if len(digits) != size*2 {
		return nil, fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalidSignatureLength, size*2, len(digits))
	}

	return hex.DecodeString(digits)
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

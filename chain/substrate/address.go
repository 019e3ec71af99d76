// Package substrate implements the SS58 address codec and signature
// verification for Substrate accounts.
package substrate

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultPrefix is the generic Substrate network prefix.
	DefaultPrefix uint16 = 42
	// PublicKeySize is the size of an sr25519 or ed25519 account key.
	PublicKeySize = 32

	checksumSize = 2
	maxPrefix    = 16383
)

var (
	ErrInvalidAddress = errors.New("invalid ss58 address")
	ErrInvalidPrefix  = errors.New("invalid ss58 prefix")

	checksumPreimage = []byte("SS58PRE")
)

// Decode decodes an SS58 address into its 32-byte public key and network
// prefix. The checksum is verified.
func Decode(address string) ([]byte, uint16, error) {
	data, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case data[0] < 64:
		prefix, prefixLen = uint16(data[0]), 1
	case data[0] < 128:
		if len(data) < 2 {
			return nil, 0, fmt.Errorf("%w: truncated prefix", ErrInvalidAddress)
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidAddress, data[0])
	}

	if len(data) != prefixLen+PublicKeySize+checksumSize {
		return nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(data))
	}

	body := data[:prefixLen+PublicKeySize]
	if !bytes.Equal(checksum(body), data[prefixLen+PublicKeySize:]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	publicKey := make([]byte, PublicKeySize)
	copy(publicKey, data[prefixLen:prefixLen+PublicKeySize])
	return publicKey, prefix, nil
}

// Encode encodes a 32-byte public key as an SS58 address for prefix.
func Encode(publicKey []byte, prefix uint16) (string, error) {
	if len(publicKey) != PublicKeySize {
		return "", fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidAddress, PublicKeySize, len(publicKey))
	}
	if prefix > maxPrefix {
		return "", fmt.Errorf("%w: %d", ErrInvalidPrefix, prefix)
	}

	var body []byte
	if prefix < 64 {
		body = append(body, byte(prefix))
	} else {
		first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
		second := byte(prefix>>8) | byte(prefix&0b0000_0000_0000_0011)<<6
		body = append(body, first, second)
	}
	body = append(body, publicKey...)
	body = append(body, checksum(body)...)

	return base58.Encode(body), nil
}

// IsValidAddress reports whether address is a checksum-valid SS58 account
// address.
func IsValidAddress(address string) bool {
	_, _, err := Decode(address)
	return err == nil
}

// PublicKey returns the account key of an SS58 address.
func PublicKey(address string) ([]byte, error) {
	key, _, err := Decode(address)
	return key, err
}

func checksum(body []byte) []byte {
	h := blake2b.Sum512(append(append([]byte{}, checksumPreimage...), body...))
	return h[:checksumSize]
}

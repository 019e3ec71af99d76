// Package signer signs KeyPass challenges the way wallets do. It is used by
// the CLI, the examples and tests; the verification pipeline never signs.
package signer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/chain/substrate"
)

// Signer is a wallet key that can sign challenge messages.
type Signer interface {
	Family() chain.Family
	Address() string
	SignMessage(message []byte) ([]byte, error)
}

// SignChallenge signs message with s and returns the 0x-prefixed hex
// signature expected in a verification request.
func SignChallenge(s Signer, message string) (string, error) {
	sig, err := s.SignMessage([]byte(message))
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// EVMSigner produces personal_sign signatures with a secp256k1 key.
type EVMSigner struct {
	priv *ecdsa.PrivateKey
}

// NewEVMSigner loads a secp256k1 key from hex, with or without 0x.
func NewEVMSigner(privHex string) (*EVMSigner, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid evm private key: %w", err)
	}
	return &EVMSigner{priv: priv}, nil
}

// GenerateEVMSigner creates a signer with a fresh random key.
func GenerateEVMSigner() (*EVMSigner, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate evm key: %w", err)
	}
	return &EVMSigner{priv: priv}, nil
}

// Family returns chain.EVM.
func (s *EVMSigner) Family() chain.Family { return chain.EVM }

// Address returns the lowercase 0x address of the key.
func (s *EVMSigner) Address() string {
	return strings.ToLower(crypto.PubkeyToAddress(s.priv.PublicKey).Hex())
}

// SignMessage signs the EIP-191 hash of message. The recovery id is returned
// as 27 or 28, as wallets do.
func (s *EVMSigner) SignMessage(message []byte) ([]byte, error) {
	signature, err := crypto.Sign(accounts.TextHash(message), s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

// Sr25519Signer signs with a Schnorrkel key under the Substrate signing
// context.
type Sr25519Signer struct {
	secret *schnorrkel.SecretKey
	public [substrate.PublicKeySize]byte
	prefix uint16
}

// NewSr25519Signer derives the key from a 32-byte hex mini secret (a
// Substrate raw seed). Addresses are encoded with prefix.
func NewSr25519Signer(seedHex string, prefix uint16) (*Sr25519Signer, error) {
	seed, err := decodeSeed(seedHex)
	if err != nil {
		return nil, err
	}
	var raw [schnorrkel.MiniSecretKeySize]byte
	copy(raw[:], seed)
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid sr25519 seed: %w", err)
	}
	return &Sr25519Signer{
		secret: msk.ExpandEd25519(),
		public: msk.Public().Encode(),
		prefix: prefix,
	}, nil
}

// GenerateSr25519Signer creates a signer with a fresh random key.
func GenerateSr25519Signer(prefix uint16) (*Sr25519Signer, error) {
	secret, public, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate sr25519 key: %w", err)
	}
	return &Sr25519Signer{secret: secret, public: public.Encode(), prefix: prefix}, nil
}

// Family returns chain.Substrate.
func (s *Sr25519Signer) Family() chain.Family { return chain.Substrate }

// Address returns the SS58 address of the public key.
func (s *Sr25519Signer) Address() string {
	address, _ := substrate.Encode(s.public[:], s.prefix)
	return address
}

// SignMessage signs the raw message bytes in the substrate signing context.
func (s *Sr25519Signer) SignMessage(message []byte) ([]byte, error) {
	sig, err := s.secret.Sign(schnorrkel.NewSigningContext(substrate.SigningContext, message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	raw := sig.Encode()
	return raw[:], nil
}

// Ed25519Signer signs with an Edwards-curve Substrate key.
type Ed25519Signer struct {
	priv   ed25519.PrivateKey
	prefix uint16
}

// NewEd25519Signer derives the key from a 32-byte hex seed.
func NewEd25519Signer(seedHex string, prefix uint16) (*Ed25519Signer, error) {
	seed, err := decodeSeed(seedHex)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed), prefix: prefix}, nil
}

// Family returns chain.Substrate.
func (s *Ed25519Signer) Family() chain.Family { return chain.Substrate }

// Address returns the SS58 address of the public key.
func (s *Ed25519Signer) Address() string {
	address, _ := substrate.Encode(s.priv.Public().(ed25519.PublicKey), s.prefix)
	return address
}

// SignMessage signs the raw message bytes.
func (s *Ed25519Signer) SignMessage(message []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, message), nil
}

func decodeSeed(seedHex string) ([]byte, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}
	return seed, nil
}

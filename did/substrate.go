package did

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/chain/substrate"
)

var (
	ErrInvalidDID     = errors.New("invalid did")
	ErrInvalidAddress = errors.New("invalid address")
)

// SubstrateProvider derives did:key identifiers from SS58 account keys:
// did:key:z<base58btc(public key)>.
type SubstrateProvider struct {
	prefix uint16
}

// NewSubstrateProvider creates a SubstrateProvider. ExtractAddress re-encodes
// keys with ss58Prefix.
func NewSubstrateProvider(ss58Prefix uint16) *SubstrateProvider {
	return &SubstrateProvider{prefix: ss58Prefix}
}

// Family returns chain.Substrate.
func (p *SubstrateProvider) Family() chain.Family {
	return chain.Substrate
}

// CreateDID returns the did:key identifier of address.
func (p *SubstrateProvider) CreateDID(address string) (string, error) {
	key, err := p.multibaseKey(address)
	if err != nil {
		return "", err
	}
	return MethodPrefix + key, nil
}

// CreateDIDDocument returns the DID document of address.
func (p *SubstrateProvider) CreateDIDDocument(address string) (*DIDDocument, error) {
	key, err := p.multibaseKey(address)
	if err != nil {
		return nil, err
	}
	return newDocument(MethodPrefix+key, TypeSr25519, key, ContextSr25519), nil
}

// Resolve returns the DID document of did.
func (p *SubstrateProvider) Resolve(did string) (*DIDDocument, error) {
	address, err := p.ExtractAddress(did)
	if err != nil {
		return nil, err
	}
	return p.CreateDIDDocument(address)
}

// ExtractAddress is the inverse of CreateDID.
func (p *SubstrateProvider) ExtractAddress(did string) (string, error) {
	encoded, err := stripMethod(did)
	if err != nil {
		return "", err
	}

	publicKey, err := base58.Decode(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if len(publicKey) != substrate.PublicKeySize {
		return "", fmt.Errorf("%w: expected %d-byte key, got %d", ErrInvalidDID, substrate.PublicKeySize, len(publicKey))
	}

	address, err := substrate.Encode(publicKey, p.prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	return address, nil
}

func (p *SubstrateProvider) multibaseKey(address string) (string, error) {
	publicKey, err := substrate.PublicKey(address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return MultibaseBase58BTC + base58.Encode(publicKey), nil
}

// stripMethod removes the did:key: prefix and the base58btc marker.
func stripMethod(did string) (string, error) {
	rest, ok := strings.CutPrefix(did, MethodPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidDID, MethodPrefix)
	}
	encoded, ok := strings.CutPrefix(rest, MultibaseBase58BTC)
	if !ok || encoded == "" {
		return "", fmt.Errorf("%w: missing base58btc multibase marker", ErrInvalidDID)
	}
	return encoded, nil
}

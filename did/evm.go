package did

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/chain/evm"
)

// addressEncoding is unpadded base64 over the URL-safe alphabet, so the
// identifier never carries '+', '/' or '='.
var addressEncoding = base64.RawURLEncoding

// EVMProvider derives did:key identifiers from EVM addresses:
// did:key:z<base64url(address bytes)>.
//
// The URL-safe alphabet keeps every address byte, so identifiers are not
// byte-compatible with the form that encodes standard base64 and then strips
// '+', '/' and '='. ExtractAddress rejects that stripped form.
type EVMProvider struct{}

// NewEVMProvider creates an EVMProvider.
func NewEVMProvider() *EVMProvider {
	return &EVMProvider{}
}

// Family returns chain.EVM.
func (p *EVMProvider) Family() chain.Family {
	return chain.EVM
}

// CreateDID returns the did:key identifier of address. Addresses differing
// only in case yield the same DID.
func (p *EVMProvider) CreateDID(address string) (string, error) {
	key, err := p.multibaseKey(address)
	if err != nil {
		return "", err
	}
	return MethodPrefix + key, nil
}

// CreateDIDDocument returns the DID document of address.
func (p *EVMProvider) CreateDIDDocument(address string) (*DIDDocument, error) {
	key, err := p.multibaseKey(address)
	if err != nil {
		return nil, err
	}
	return newDocument(MethodPrefix+key, TypeSecp256k1Recover, key, ContextSecp256k1Recovery), nil
}

// Resolve returns the DID document of did.
func (p *EVMProvider) Resolve(did string) (*DIDDocument, error) {
	address, err := p.ExtractAddress(did)
	if err != nil {
		return nil, err
	}
	return p.CreateDIDDocument(address)
}

// ExtractAddress is the inverse of CreateDID. It returns the lowercase
// 0x-prefixed address.
func (p *EVMProvider) ExtractAddress(did string) (string, error) {
	encoded, err := stripMethod(did)
	if err != nil {
		return "", err
	}
	if rem := len(encoded) % 4; rem != 0 {
		encoded += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if len(raw) != common.AddressLength {
		return "", fmt.Errorf("%w: expected %d-byte address, got %d", ErrInvalidDID, common.AddressLength, len(raw))
	}

	address := evm.NormalizeAddress(common.BytesToAddress(raw).Hex())
	if !evm.IsValidAddress(address) {
		return "", fmt.Errorf("%w: decoded address %s", ErrInvalidDID, address)
	}
	return address, nil
}

func (p *EVMProvider) multibaseKey(address string) (string, error) {
	if !evm.IsValidAddress(address) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	raw := common.HexToAddress(evm.NormalizeAddress(address)).Bytes()
	return MultibaseBase58BTC + addressEncoding.EncodeToString(raw), nil
}

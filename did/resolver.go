package did

import (
	"fmt"

	"github.com/pilacorp/go-keypass-sdk/chain"
)

// Resolver resolves did:key identifiers of any configured family. The
// encodings of the families decode to different key lengths, so at most one
// provider accepts a given DID.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a Resolver over providers, tried in order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// NewDefaultResolver resolves Substrate (with ss58Prefix) and EVM DIDs.
func NewDefaultResolver(ss58Prefix uint16) *Resolver {
	return NewResolver(NewSubstrateProvider(ss58Prefix), NewEVMProvider())
}

// Provider returns the provider for family.
func (r *Resolver) Provider(family chain.Family) (Provider, bool) {
	for _, p := range r.providers {
		if p.Family() == family {
			return p, true
		}
	}
	return nil, false
}

// Resolve returns the DID document of did and the family that produced it.
func (r *Resolver) Resolve(did string) (*DIDDocument, chain.Family, error) {
	if _, err := stripMethod(did); err != nil {
		return nil, "", err
	}
	for _, p := range r.providers {
		doc, err := p.Resolve(did)
		if err == nil {
			return doc, p.Family(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: no provider accepts %s", ErrInvalidDID, did)
}

// ExtractAddress returns the account address behind did.
func (r *Resolver) ExtractAddress(did string) (string, chain.Family, error) {
	doc, family, err := r.Resolve(did)
	if err != nil {
		return "", "", err
	}
	p, _ := r.Provider(family)
	address, err := p.ExtractAddress(doc.Id)
	if err != nil {
		return "", "", err
	}
	return address, family, nil
}

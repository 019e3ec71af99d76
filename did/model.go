package did

import "github.com/pilacorp/go-keypass-sdk/chain"

const (
	// MethodPrefix is the did:key method prefix.
	MethodPrefix = "did:key:"
	// MultibaseBase58BTC is the multibase marker for base58btc.
	MultibaseBase58BTC = "z"

	// fragmentLength is the number of key characters used as fragment id.
	fragmentLength = 8
)

// Verification method types.
const (
	TypeSr25519          = "Sr25519VerificationKey2020"
	TypeSecp256k1Recover = "EcdsaSecp256k1RecoveryMethod2020"
)

// JSON-LD contexts.
const (
	ContextDIDv1             = "https://www.w3.org/ns/did/v1"
	ContextSr25519           = "https://w3id.org/security/suites/sr25519-2020/v1"
	ContextSecp256k1Recovery = "https://w3id.org/security/suites/secp256k1recovery-2020/v2"
)

// DIDDocument is a did:key document derived from an account address.
type DIDDocument struct {
	Context              []string             `json:"@context"`
	Id                   string               `json:"id"`
	Controller           string               `json:"controller"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication"`
	AssertionMethod      []string             `json:"assertionMethod"`
	KeyAgreement         []string             `json:"keyAgreement"`
	CapabilityInvocation []string             `json:"capabilityInvocation"`
	CapabilityDelegation []string             `json:"capabilityDelegation"`
	Service              []string             `json:"service"`
}

// VerificationMethod is the single key entry of a DID document.
type VerificationMethod struct {
	Id                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Provider derives DIDs and DID documents for one chain family. All methods
// are pure functions of their input.
type Provider interface {
	Family() chain.Family
	CreateDID(address string) (string, error)
	CreateDIDDocument(address string) (*DIDDocument, error)
	Resolve(did string) (*DIDDocument, error)
	ExtractAddress(did string) (string, error)
}

// newDocument builds a document whose single verification method is
// referenced by every relationship except keyAgreement and service.
func newDocument(did, methodType, multibaseKey string, context ...string) *DIDDocument {
	fragment := multibaseKey
	if len(fragment) > fragmentLength {
		fragment = fragment[:fragmentLength]
	}
	methodID := did + "#" + fragment

	return &DIDDocument{
		Context:    append([]string{ContextDIDv1}, context...),
		Id:         did,
		Controller: did,
		VerificationMethod: []VerificationMethod{{
			Id:                 methodID,
			Type:               methodType,
			Controller:         did,
			PublicKeyMultibase: multibaseKey,
		}},
		Authentication:       []string{methodID},
		AssertionMethod:      []string{methodID},
		KeyAgreement:         []string{},
		CapabilityInvocation: []string{methodID},
		CapabilityDelegation: []string{methodID},
		Service:              []string{},
	}
}

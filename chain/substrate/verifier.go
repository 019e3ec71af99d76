package substrate

import (
	"crypto/ed25519"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"

	"github.com/pilacorp/go-keypass-sdk/chain"
)

const (
	// SignatureSize is the size of an sr25519 or ed25519 signature.
	SignatureSize = 64

	bytesWrapPrefix = "<Bytes>"
	bytesWrapSuffix = "</Bytes>"
)

// SigningContext is the sr25519 signing context used by Substrate wallets.
var SigningContext = []byte("substrate")

// Scheme verifies a raw signature against a message and a 32-byte public key.
type Scheme interface {
	Name() string
	Verify(message, signature, publicKey []byte) bool
}

// Sr25519 is the Schnorrkel scheme over Ristretto25519.
type Sr25519 struct{}

// Name returns "sr25519".
func (Sr25519) Name() string { return "sr25519" }

// Verify checks an sr25519 signature made under SigningContext.
func (Sr25519) Verify(message, signature, publicKey []byte) bool {
	if len(signature) != SignatureSize || len(publicKey) != PublicKeySize {
		return false
	}

	var keyBytes [PublicKeySize]byte
	copy(keyBytes[:], publicKey)
	pub := new(schnorrkel.PublicKey)
	if err := pub.Decode(keyBytes); err != nil {
		return false
	}

	var sigBytes [SignatureSize]byte
	copy(sigBytes[:], signature)
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(sigBytes); err != nil {
		return false
	}

	ok, err := pub.Verify(sig, schnorrkel.NewSigningContext(SigningContext, message))
	return err == nil && ok
}

// Ed25519 is the Edwards-curve scheme.
type Ed25519 struct{}

// Name returns "ed25519".
func (Ed25519) Name() string { return "ed25519" }

// Verify checks an ed25519 signature.
func (Ed25519) Verify(message, signature, publicKey []byte) bool {
	if len(signature) != ed25519.SignatureSize || len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// Verifier verifies Substrate sign-in signatures. The wire format does not say
// which key type produced a signature, so every configured scheme is tried in
// order and the first success wins.
type Verifier struct {
	schemes []Scheme
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSchemes replaces the default scheme list.
func WithSchemes(schemes ...Scheme) Option {
	return func(v *Verifier) { v.schemes = schemes }
}

// NewVerifier creates a Verifier trying sr25519 first, then ed25519.
func NewVerifier(options ...Option) *Verifier {
	v := &Verifier{
		schemes: []Scheme{Sr25519{}, Ed25519{}},
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// ValidateAddress checks that address is a valid SS58 account address.
func (v *Verifier) ValidateAddress(address string) error {
	_, _, err := Decode(address)
	return err
}

// ValidateSignature checks the 0x-prefixed 64-byte hex shape of signature.
func (v *Verifier) ValidateSignature(signature string) error {
	_, err := chain.DecodeSignature(signature, SignatureSize)
	return err
}

// Verify reports whether signature over message was produced by the key
// behind address. Browser extensions sign the message wrapped in
// <Bytes>...</Bytes>, so both forms are accepted. Malformed input and
// failures inside the scheme implementations yield false.
func (v *Verifier) Verify(message, signature, address string) bool {
	publicKey, err := PublicKey(address)
	if err != nil {
		return false
	}
	sig, err := chain.DecodeSignature(signature, SignatureSize)
	if err != nil {
		return false
	}

	candidates := [][]byte{
		[]byte(message),
		[]byte(bytesWrapPrefix + message + bytesWrapSuffix),
	}
	for _, scheme := range v.schemes {
		for _, msg := range candidates {
			if safeVerify(scheme, msg, sig, publicKey) {
				return true
			}
		}
	}
	return false
}

func safeVerify(scheme Scheme, message, signature, publicKey []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return scheme.Verify(message, signature, publicKey)
}

package keypass

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/config"
	"github.com/pilacorp/go-keypass-sdk/signer"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

func TestSignInFlow(t *testing.T) {
	wallet, err := signer.GenerateSr25519Signer(config.DefaultSS58Prefix)
	require.NoError(t, err)

	ch, err := NewChallengeIssuer().Issue(wallet.Address())
	require.NoError(t, err)
	sig, err := signer.SignChallenge(wallet, ch.Message)
	require.NoError(t, err)

	resp := VerifySignature(context.Background(), verifier.Request{
		Message:   ch.Message,
		Signature: sig,
		Address:   wallet.Address(),
	})
	require.Equal(t, verifier.CodeSuccess, resp.Code, resp.Message)

	doc, family, err := NewResolver(nil).Resolve(resp.DID)
	require.NoError(t, err)
	assert.Equal(t, chain.Substrate, family)
	assert.Equal(t, resp.DID, doc.Id)

	address, _, err := NewResolver(nil).ExtractAddress(resp.DID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address(), address)
}

func TestNewVerifierUsesConfiguredPrefix(t *testing.T) {
	wallet, err := signer.GenerateSr25519Signer(2)
	require.NoError(t, err)
	ch, err := NewChallengeIssuer().Issue(wallet.Address())
	require.NoError(t, err)
	sig, err := signer.SignChallenge(wallet, ch.Message)
	require.NoError(t, err)

	svc := NewVerifier(config.New(config.Config{SS58Prefix: 2}))
	resp := svc.VerifySignature(context.Background(), verifier.Request{
		Message:   ch.Message,
		Signature: sig,
		Address:   wallet.Address(),
	})
	require.Equal(t, verifier.CodeSuccess, resp.Code, resp.Message)

	address, _, err := NewResolver(config.New(config.Config{SS58Prefix: 2})).ExtractAddress(resp.DID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address(), address)
}

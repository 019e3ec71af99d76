package evm

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-keypass-sdk/chain"
)

const testPrivateKey = "c6f8cf675b77523c3d3157d322b3c7c4cc14874f290407398361be1a4c1ed7d0"

func testAccount(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	return priv, crypto.PubkeyToAddress(priv.PublicKey).Hex()
}

func personalSign(t *testing.T, priv *ecdsa.PrivateKey, message string, v byte) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), priv)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += v
	return "0x" + hex.EncodeToString(sig)
}

type failingRecoverer struct{}

func (failingRecoverer) RecoverAddress(_, _ []byte) (common.Address, error) {
	return common.Address{}, errors.New("boom")
}

type panickingRecoverer struct{}

func (panickingRecoverer) RecoverAddress(_, _ []byte) (common.Address, error) {
	panic("bad curve point")
}

func TestVerify(t *testing.T) {
	priv, address := testAccount(t)
	message := "KeyPass Login\nIssued At: 2025-01-01T00:00:00.000Z\nNonce: abc123\nAddress: " + address

	tests := []struct {
		name      string
		message   string
		signature string
		address   string
		want      bool
	}{
		{name: "v 27/28", message: message, signature: personalSign(t, priv, message, 27), address: address, want: true},
		{name: "v 0/1", message: message, signature: personalSign(t, priv, message, 0), address: address, want: true},
		{name: "lowercase address", message: message, signature: personalSign(t, priv, message, 27), address: strings.ToLower(address), want: true},
		{name: "uppercase hex digits", message: message, signature: personalSign(t, priv, message, 27), address: "0x" + strings.ToUpper(address[2:]), want: true},
		{name: "other message", message: message + "x", signature: personalSign(t, priv, message, 27), address: address, want: false},
		{name: "other address", message: message, signature: personalSign(t, priv, message, 27), address: "0x0000000000000000000000000000000000018888", want: false},
		{name: "zero signature", message: message, signature: "0x" + strings.Repeat("00", SignatureSize), address: address, want: false},
		{name: "bad recovery id", message: message, signature: "0x" + strings.Repeat("11", 64) + "05", address: address, want: false},
		{name: "short signature", message: message, signature: "0x1234", address: address, want: false},
	}

	v := NewVerifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(tt.message, tt.signature, tt.address))
		})
	}
}

func TestVerifyRecovererFailures(t *testing.T) {
	_, address := testAccount(t)
	signature := "0x" + strings.Repeat("11", SignatureSize)

	assert.False(t, NewVerifier(WithRecoverer(failingRecoverer{})).Verify("msg", signature, address))
	assert.False(t, NewVerifier(WithRecoverer(panickingRecoverer{})).Verify("msg", signature, address))
}

func TestValidate(t *testing.T) {
	v := NewVerifier()

	assert.NoError(t, v.ValidateAddress("0xb64b2b1168047d1745492c7025c5edba69e4f4f0"))
	assert.ErrorIs(t, v.ValidateAddress("b64b2b1168047d1745492c7025c5edba69e4f4f0"), ErrInvalidAddress)
	assert.ErrorIs(t, v.ValidateAddress("0x1234"), ErrInvalidAddress)

	assert.NoError(t, v.ValidateSignature("0x"+strings.Repeat("ab", 65)))
	assert.ErrorIs(t, v.ValidateSignature("0x"+strings.Repeat("ab", 64)), chain.ErrInvalidSignatureLength)
	assert.ErrorIs(t, v.ValidateSignature("0x"+strings.Repeat("gg", 65)), chain.ErrInvalidSignatureFormat)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xb64b2b1168047d1745492c7025c5edba69e4f4f0", NormalizeAddress("0xB64B2B1168047D1745492C7025C5EDBA69E4F4F0"))
}

package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	evmAddress   = "0xb64b2b1168047d1745492c7025c5edba69e4f4f0"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		address string
		hint    string
		want    Family
		wantErr error
	}{
		{name: "evm by shape", address: evmAddress, want: EVM},
		{name: "evm mixed case", address: "0xB64B2b1168047d1745492c7025c5edba69e4f4f0", want: EVM},
		{name: "substrate by shape", address: aliceAddress, want: Substrate},
		{name: "substrate 47 chars", address: aliceAddress[:47], want: Substrate},
		{name: "too short hex", address: "0x1234", wantErr: ErrUnknownAddressFormat},
		{name: "hex without prefix", address: strings.TrimPrefix(evmAddress, "0x"), wantErr: ErrUnknownAddressFormat},
		{name: "base58 with excluded char", address: "0" + aliceAddress[1:], wantErr: ErrUnknownAddressFormat},
		{name: "base58 with l", address: "l" + aliceAddress[1:], wantErr: ErrUnknownAddressFormat},
		{name: "empty", address: "", wantErr: ErrUnknownAddressFormat},
		{name: "hint wins over shape", address: evmAddress, hint: "polkadot", want: Substrate},
		{name: "ethereum hint", address: "anything", hint: "ethereum", want: EVM},
		{name: "alias hint rejected", address: evmAddress, hint: "evm", wantErr: ErrUnsupportedChainType},
		{name: "upper case hint rejected", address: evmAddress, hint: "ETHEREUM", wantErr: ErrUnsupportedChainType},
		{name: "unknown hint", address: evmAddress, hint: "bitcoin", wantErr: ErrUnsupportedChainType},
		{name: "unknown hint with substrate shape", address: aliceAddress, hint: "bitcoin", wantErr: ErrUnsupportedChainType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.address, tt.hint)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFamily(t *testing.T) {
	for _, name := range []string{"ethereum", "EVM", " Ethereum "} {
		got, err := ParseFamily(name)
		require.NoError(t, err, name)
		assert.Equal(t, EVM, got, name)
	}
	for _, name := range []string{"polkadot", "substrate", "Polkadot"} {
		got, err := ParseFamily(name)
		require.NoError(t, err, name)
		assert.Equal(t, Substrate, got, name)
	}
	_, err := ParseFamily("bitcoin")
	assert.ErrorIs(t, err, ErrUnsupportedChainType)
}

func TestDecodeSignature(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 64)

	sig, err := DecodeSignature(valid, 64)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	_, err = DecodeSignature(strings.TrimPrefix(valid, "0x"), 64)
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)

	_, err = DecodeSignature("0x"+strings.Repeat("zz", 64), 64)
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)

	_, err = DecodeSignature(valid, 65)
	assert.ErrorIs(t, err, ErrInvalidSignatureLength)

	_, err = DecodeSignature(valid[:len(valid)-1], 64)
	assert.ErrorIs(t, err, ErrInvalidSignatureLength)
}

func TestFamilyValid(t *testing.T) {
	assert.True(t, Substrate.Valid())
	assert.True(t, EVM.Valid())
	assert.False(t, Family("bitcoin").Valid())
	assert.Equal(t, "polkadot", Substrate.String())
}

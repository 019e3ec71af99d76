package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/chain/evm"
	"github.com/pilacorp/go-keypass-sdk/chain/substrate"
)

// RemoteSigner asks a remote wallet service to sign challenges for a fixed
// account.
type RemoteSigner struct {
	endpoint string
	apiKey   string
	address  string
	family   chain.Family
	client   *http.Client
}

// NewRemoteSigner creates a RemoteSigner for address. The family is inferred
// from the address shape.
func NewRemoteSigner(endpoint, apiKey, address string) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	family, err := chain.Detect(address)
	if err != nil {
		return nil, err
	}

	return &RemoteSigner{
		endpoint: endpoint,
		apiKey:   apiKey,
		address:  address,
		family:   family,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Family returns the family detected from the signer address.
func (s *RemoteSigner) Family() chain.Family { return s.family }

// Address returns the address the remote service signs for.
func (s *RemoteSigner) Address() string { return s.address }

// SignMessage signs message using the remote API.
func (s *RemoteSigner) SignMessage(message []byte) ([]byte, error) {
	return s.SignMessageContext(context.Background(), message)
}

// SignMessageContext is SignMessage bound to ctx.
func (s *RemoteSigner) SignMessageContext(ctx context.Context, message []byte) ([]byte, error) {
	reqBody, _ := json.Marshal(map[string]any{
		"address":     s.address,
		"chain_type":  s.family.String(),
		"message_hex": hex.EncodeToString(message),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, err
	}
	if want := signatureSize(s.family); len(sig) != want {
		return nil, fmt.Errorf("invalid signature length %d, expected %d", len(sig), want)
	}

	return sig, nil
}

func signatureSize(family chain.Family) int {
	if family == chain.EVM {
		return evm.SignatureSize
	}
	return substrate.SignatureSize
}

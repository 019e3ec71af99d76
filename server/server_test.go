package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-keypass-sdk/config"
	"github.com/pilacorp/go-keypass-sdk/signer"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceDID     = "did:key:zFHNpKmJrUtusuvKPGomAygQqeiks98bdV6yD61Stb6vg"
	bobAddress   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type fixedNonce string

func (n fixedNonce) Nonce() (string, error) { return string(n), nil }

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s, err := New(config.New(cfg),
		WithClock(time2.NewMockClock(now)),
		WithLogger(zerolog.Nop()),
		WithNonceSource(fixedNonce("abc123")),
	)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func issueChallenge(t *testing.T, s *Server, address string) challengeResponse {
	t.Helper()
	rec := do(t, s, http.MethodGet, "/api/challenge?address="+url.QueryEscape(address), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[challengeResponse](t, rec)
}

func verifyBody(t *testing.T, req verifier.Request) string {
	t.Helper()
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return string(raw)
}

func TestSignInSubstrate(t *testing.T) {
	s := newTestServer(t, config.Config{})

	wallet, err := signer.GenerateSr25519Signer(s.Config.SS58Prefix)
	require.NoError(t, err)

	ch := issueChallenge(t, s, wallet.Address())
	assert.Equal(t, "abc123", ch.Nonce)
	assert.Equal(t, "polkadot", ch.ChainType)
	assert.True(t, now.Equal(ch.IssuedAt))
	assert.True(t, now.Add(5*time.Minute).Equal(ch.ExpiresAt))

	sig, err := signer.SignChallenge(wallet, ch.Message)
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/api/verify", verifyBody(t, verifier.Request{
		Message:   ch.Message,
		Signature: sig,
		Address:   wallet.Address(),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[verifier.Response](t, rec)
	assert.Equal(t, verifier.StatusSuccess, resp.Status)
	assert.Equal(t, verifier.CodeSuccess, resp.Code)
	assert.True(t, strings.HasPrefix(resp.DID, "did:key:z"))
	assert.Equal(t, "polkadot", resp.ChainType())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.verifications.WithLabelValues("SUCCESS", "polkadot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.challenges.WithLabelValues("polkadot")))

	rec = do(t, s, http.MethodGet, "/api/did/"+resp.DID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[didResolution](t, rec)
	assert.Equal(t, resp.DID, resolved.DIDDocument.Id)
	assert.Equal(t, "polkadot", resolved.ChainType)
}

func TestSignInEVMSingleFamily(t *testing.T) {
	s := newTestServer(t, config.Config{})

	wallet, err := signer.GenerateEVMSigner()
	require.NoError(t, err)
	ch := issueChallenge(t, s, wallet.Address())
	assert.Equal(t, "ethereum", ch.ChainType)

	sig, err := signer.SignChallenge(wallet, ch.Message)
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/api/verify/ethereum", verifyBody(t, verifier.Request{
		Message:   ch.Message,
		Signature: sig,
		Address:   wallet.Address(),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[verifier.Response](t, rec)
	assert.Equal(t, verifier.CodeSuccess, resp.Code)
	assert.Nil(t, resp.Data)
	assert.NotContains(t, rec.Body.String(), "chainType")
}

func TestVerifyErrors(t *testing.T) {
	s := newTestServer(t, config.Config{})

	wallet, err := signer.GenerateSr25519Signer(s.Config.SS58Prefix)
	require.NoError(t, err)
	ch := issueChallenge(t, s, wallet.Address())
	sig, err := signer.SignChallenge(wallet, ch.Message)
	require.NoError(t, err)

	expired := strings.Replace(ch.Message, "2025-03-14T12:00:00.000Z", "2025-03-14T11:54:59.000Z", 1)
	require.NotEqual(t, ch.Message, expired)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   verifier.Code
	}{
		{"not json", "/api/verify", "{", http.StatusBadRequest, verifier.CodeInvalidRequest},
		{"missing signature", "/api/verify", `{"message":"m","address":"a"}`, http.StatusBadRequest, verifier.CodeInvalidRequest},
		{"non-string address", "/api/verify", `{"message":"m","signature":"0x00","address":7}`, http.StatusBadRequest, verifier.CodeInvalidRequest},
		{"unknown family", "/api/verify/bitcoin", verifyBody(t, verifier.Request{Message: ch.Message, Signature: sig, Address: wallet.Address()}), http.StatusBadRequest, verifier.CodeUnsupportedChainType},
		{"tampered", "/api/verify", verifyBody(t, verifier.Request{Message: ch.Message, Signature: sig, Address: bobAddress}), http.StatusUnauthorized, verifier.CodeVerificationFailed},
		{"expired", "/api/verify", verifyBody(t, verifier.Request{Message: expired, Signature: sig, Address: wallet.Address()}), http.StatusUnauthorized, verifier.CodeMessageExpired},
		{"too long", "/api/verify", verifyBody(t, verifier.Request{Message: strings.Repeat("x", 300), Signature: sig, Address: wallet.Address()}), http.StatusBadRequest, verifier.CodeMessageTooLong},
		{"short signature", "/api/verify", verifyBody(t, verifier.Request{Message: ch.Message, Signature: "0xabcd", Address: wallet.Address()}), http.StatusBadRequest, verifier.CodeInvalidSignatureLength},
		{"evm entry with substrate address", "/api/verify/ethereum", verifyBody(t, verifier.Request{Message: ch.Message, Signature: sig, Address: wallet.Address()}), http.StatusBadRequest, verifier.CodeInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decode[verifier.Response](t, rec)
			assert.Equal(t, verifier.StatusError, resp.Status)
			assert.Equal(t, tt.code, resp.Code)
			assert.Empty(t, resp.DID)
		})
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics.verifications.WithLabelValues("INVALID_REQUEST", "unknown")))
}

func TestGetDID(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rec := do(t, s, http.MethodGet, "/api/did/"+aliceDID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"`+aliceDID+`"`)
	assert.Contains(t, rec.Body.String(), `"keyAgreement":[]`)

	rec = do(t, s, http.MethodGet, "/api/did/did:key:zAAAA", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, verifier.CodeInvalidRequest, decode[verifier.Response](t, rec).Code)
}

func TestGetChallengeErrors(t *testing.T) {
	s := newTestServer(t, config.Config{})

	tests := []struct {
		name  string
		query string
		code  verifier.Code
	}{
		{"missing address", "", verifier.CodeInvalidRequest},
		{"unknown shape", "?address=hello", verifier.CodeUnknownAddressFormat},
		{"unsupported hint", "?address=" + aliceAddress + "&chainType=bitcoin", verifier.CodeUnsupportedChainType},
		{"bad checksum", "?address=" + aliceAddress[:47] + "Z", verifier.CodeInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/challenge"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decode[verifier.Response](t, rec).Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.Config{RateLimit: 0.001, RateBurst: 1})

	first := do(t, s, http.MethodGet, "/api/challenge?address="+aliceAddress, "")
	assert.Equal(t, http.StatusOK, first.Code)

	second := do(t, s, http.MethodGet, "/api/challenge?address="+aliceAddress, "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	health := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, health.Code, "only the api group is rate limited")
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rec := do(t, s, http.MethodPost, "/api/verify", `{"message":"`+strings.Repeat("x", 70*1024)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.Config{})
	do(t, s, http.MethodPost, "/api/verify", "{")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `keypass_verifications_total{chain="unknown",code="INVALID_REQUEST"} 1`)
	assert.Contains(t, rec.Body.String(), "keypass_verification_duration_seconds")
}

func TestStatusFor(t *testing.T) {
	tests := map[verifier.Code]int{
		verifier.CodeSuccess:                http.StatusOK,
		verifier.CodeInvalidRequest:         http.StatusBadRequest,
		verifier.CodeMessageTooLong:         http.StatusBadRequest,
		verifier.CodeInvalidMessageFormat:   http.StatusBadRequest,
		verifier.CodeUnsupportedChainType:   http.StatusBadRequest,
		verifier.CodeUnknownAddressFormat:   http.StatusBadRequest,
		verifier.CodeInvalidAddress:         http.StatusBadRequest,
		verifier.CodeInvalidSignatureFormat: http.StatusBadRequest,
		verifier.CodeInvalidSignatureLength: http.StatusBadRequest,
		verifier.CodeVerificationFailed:     http.StatusUnauthorized,
		verifier.CodeMessageExpired:         http.StatusUnauthorized,
		verifier.CodeMessageFuture:          http.StatusUnauthorized,
		verifier.CodeDIDCreationFailed:      http.StatusInternalServerError,
		verifier.CodeInternalError:          http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, StatusFor(code), code)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.New(config.Config{})
	cfg.LogLevel = "loud"
	_, err := New(cfg)
	assert.Error(t, err)
}

package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/did"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

// StatusFor maps a response code to its HTTP status.
func StatusFor(code verifier.Code) int {
	switch code {
	case verifier.CodeSuccess:
		return http.StatusOK
	case verifier.CodeVerificationFailed, verifier.CodeMessageExpired, verifier.CodeMessageFuture:
		return http.StatusUnauthorized
	case verifier.CodeInternalError, verifier.CodeDIDCreationFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

type didResolution struct {
	DIDDocument *did.DIDDocument `json:"didDocument"`
	ChainType   string           `json:"chainType"`
}

type challengeResponse struct {
	Message   string    `json:"message"`
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	ChainType string    `json:"chainType"`
}

func respond(c echo.Context, resp *verifier.Response) error {
	return c.JSON(StatusFor(resp.Code), resp)
}

func (s *Server) postVerify(c echo.Context) error {
	return s.verify(c, s.unified)
}

func (s *Server) postVerifyFamily(c echo.Context) error {
	family, err := chain.ParseFamily(c.Param("chain"))
	if err != nil {
		return respond(c, verifier.NewErrorResponse(verifier.CodeUnsupportedChainType, "Unsupported chain type"))
	}
	return s.verify(c, s.single[family])
}

func (s *Server) verify(c echo.Context, svc *verifier.Service) error {
	start := time.Now()

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return err
		}
		return respond(c, verifier.NewErrorResponse(verifier.CodeInvalidRequest, "Invalid request body"))
	}

	req, err := verifier.DecodeRequest(raw)
	if err != nil {
		resp := verifier.ErrorResponse(err)
		s.Metrics.observeVerification(resp.Code, "", time.Since(start))
		return respond(c, resp)
	}

	resp, family := svc.Evaluate(c.Request().Context(), *req)
	s.Metrics.observeVerification(resp.Code, family, time.Since(start))
	return respond(c, resp)
}

func (s *Server) getDID(c echo.Context) error {
	doc, family, err := s.resolver.Resolve(c.Param("did"))
	if err != nil {
		return respond(c, verifier.NewErrorResponse(verifier.CodeInvalidRequest, "Invalid DID"))
	}
	return c.JSON(http.StatusOK, didResolution{DIDDocument: doc, ChainType: family.String()})
}

func (s *Server) getChallenge(c echo.Context) error {
	address := strings.TrimSpace(c.QueryParam("address"))
	if address == "" {
		return respond(c, verifier.NewErrorResponse(verifier.CodeInvalidRequest, "Missing required fields: address"))
	}

	family, err := chain.Resolve(address, c.QueryParam("chainType"))
	if err != nil {
		if errors.Is(err, chain.ErrUnsupportedChainType) {
			return respond(c, verifier.NewErrorResponse(verifier.CodeUnsupportedChainType, "Unsupported chain type"))
		}
		return respond(c, verifier.NewErrorResponse(verifier.CodeUnknownAddressFormat, "Unknown address format"))
	}
	b, ok := s.unified.Backend(family)
	if !ok {
		return respond(c, verifier.NewErrorResponse(verifier.CodeUnsupportedChainType, "Unsupported chain type"))
	}
	if err := b.ValidateAddress(address); err != nil {
		return respond(c, verifier.NewErrorResponse(verifier.CodeInvalidAddress, "Invalid address"))
	}

	challenge, err := s.issuer.Issue(address)
	if err != nil {
		zerologFromContext(c).Error().Err(err).Str("address", address).Msg("Failed to issue challenge")
		return respond(c, verifier.NewErrorResponse(verifier.CodeInternalError, "Internal error"))
	}
	s.Metrics.observeChallenge(family)

	return c.JSON(http.StatusOK, challengeResponse{
		Message:   challenge.Message,
		Address:   challenge.Address,
		Nonce:     challenge.Nonce,
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.IssuedAt.Add(s.Config.MaxMessageAge),
		ChainType: family.String(),
	})
}

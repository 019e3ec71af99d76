package verifier

import (
	"errors"
	"fmt"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/message"
)

// Code is a stable response code.
type Code string

// Response codes. Every error code is the outcome of exactly one pipeline
// stage.
const (
	CodeSuccess                Code = "SUCCESS"
	CodeInvalidRequest         Code = "INVALID_REQUEST"
	CodeMessageTooLong         Code = "MESSAGE_TOO_LONG"
	CodeInvalidMessageFormat   Code = "INVALID_MESSAGE_FORMAT"
	CodeVerificationFailed     Code = "VERIFICATION_FAILED"
	CodeMessageExpired         Code = "MESSAGE_EXPIRED"
	CodeMessageFuture          Code = "MESSAGE_FUTURE"
	CodeUnsupportedChainType   Code = "UNSUPPORTED_CHAIN_TYPE"
	CodeUnknownAddressFormat   Code = "UNKNOWN_ADDRESS_FORMAT"
	CodeInvalidAddress         Code = "INVALID_ADDRESS"
	CodeInvalidSignatureFormat Code = "INVALID_SIGNATURE_FORMAT"
	CodeInvalidSignatureLength Code = "INVALID_SIGNATURE_LENGTH"
	CodeDIDCreationFailed      Code = "DID_CREATION_FAILED"
	CodeInternalError          Code = "INTERNAL_ERROR"
)

// Error is a pipeline failure tagged with its response code. Message is
// safe to return to callers; Err carries the cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the response code carried by err, or CodeInternalError for
// errors that are not tagged.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Code
	}
	return CodeInternalError
}

func fromMessageError(err error) *Error {
	var merr *message.Error
	if !errors.As(err, &merr) {
		return newError(CodeInternalError, "Internal error", err)
	}
	switch merr.Kind {
	case message.KindTooLong:
		return newError(CodeMessageTooLong, fmt.Sprintf("Message exceeds maximum length of %d characters", message.MaxLength), err)
	case message.KindInvalidFormat:
		return newError(CodeInvalidMessageFormat, "Invalid message format: "+merr.Reason, err)
	case message.KindTampered:
		return newError(CodeVerificationFailed, "Message has been tampered with: address mismatch", err)
	case message.KindExpired:
		return newError(CodeMessageExpired, "Message has expired", err)
	case message.KindFuture:
		return newError(CodeMessageFuture, "Message timestamp is in the future", err)
	default:
		return newError(CodeInternalError, "Internal error", err)
	}
}

func fromRoutingError(err error) *Error {
	switch {
	case errors.Is(err, chain.ErrUnsupportedChainType):
		return newError(CodeUnsupportedChainType, "Unsupported chain type", err)
	case errors.Is(err, chain.ErrUnknownAddressFormat):
		return newError(CodeUnknownAddressFormat, "Unknown address format", err)
	default:
		return newError(CodeInternalError, "Internal error", err)
	}
}

func fromSignatureFormatError(err error) *Error {
	switch {
	case errors.Is(err, chain.ErrInvalidSignatureLength):
		return newError(CodeInvalidSignatureLength, "Invalid signature length", err)
	case errors.Is(err, chain.ErrInvalidSignatureFormat):
		return newError(CodeInvalidSignatureFormat, "Invalid signature format", err)
	default:
		return newError(CodeInternalError, "Internal error", err)
	}
}

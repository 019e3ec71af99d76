package verifier

import "errors"

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is a sign-in verification request. ChainType is an optional
// family hint ("polkadot" or "ethereum").
type Request struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	ChainType string `json:"chainType,omitempty"`
}

// Response is the outcome of a verification. DID is set only on success.
type Response struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Code    Code           `json:"code"`
	DID     string         `json:"did,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Success reports whether the response carries a DID.
func (r *Response) Success() bool {
	return r.Status == StatusSuccess
}

// ChainType returns the family stamped into Data, if any.
func (r *Response) ChainType() string {
	if r.Data == nil {
		return ""
	}
	s, _ := r.Data["chainType"].(string)
	return s
}

func successResponse(did string, data map[string]any) *Response {
	return &Response{
		Status:  StatusSuccess,
		Message: "Signature verified successfully",
		Code:    CodeSuccess,
		DID:     did,
		Data:    data,
	}
}

// ErrorResponse converts err into an error response. Untagged errors become
// INTERNAL_ERROR without exposing their text.
func ErrorResponse(err error) *Response {
	var verr *Error
	if !errors.As(err, &verr) || verr.Code == CodeInternalError {
		return &Response{Status: StatusError, Message: "Internal error", Code: CodeInternalError}
	}
	return &Response{Status: StatusError, Message: verr.Message, Code: verr.Code}
}

// NewErrorResponse builds an error response for code.
func NewErrorResponse(code Code, message string) *Response {
	return &Response{Status: StatusError, Message: message, Code: code}
}

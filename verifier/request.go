package verifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const requestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["message", "signature", "address"],
	"properties": {
		"message":   {"type": "string", "minLength": 1},
		"signature": {"type": "string", "minLength": 1},
		"address":   {"type": "string", "minLength": 1},
		"chainType": {"type": "string"}
	}
}`

var requestSchemaLoader = gojsonschema.NewStringLoader(requestSchema)

// DecodeRequest validates raw JSON against the request schema and decodes
// it. Malformed JSON, missing fields and non-string fields are reported as
// INVALID_REQUEST.
func DecodeRequest(raw []byte) (*Request, error) {
	result, err := gojsonschema.Validate(requestSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, newError(CodeInvalidRequest, "Invalid request body", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, newError(CodeInvalidRequest, "Invalid request: "+strings.Join(details, "; "), nil)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, newError(CodeInvalidRequest, "Invalid request body", fmt.Errorf("decode request: %w", err))
	}
	return &req, nil
}

func checkShape(req Request) *Error {
	var missing []string
	if req.Message == "" {
		missing = append(missing, "message")
	}
	if req.Signature == "" {
		missing = append(missing, "signature")
	}
	if req.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return newError(CodeInvalidRequest, "Missing required fields: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

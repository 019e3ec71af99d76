// Package message builds and validates KeyPass challenge messages.
//
// A challenge message is exactly four lines:
//
//	KeyPass Login
//	Issued At: <RFC3339 timestamp>
//	Nonce: <opaque token>
//	Address: <claimed address>
package message

import (
	"strings"
	"time"
)

const (
	// Title is the fixed first line of every challenge message.
	Title = "KeyPass Login"
	// MaxLength is the maximum message length in characters.
	MaxLength = 256
	// IssuedAtLayout is the layout used to render timestamps.
	IssuedAtLayout = "2006-01-02T15:04:05.000Z07:00"

	issuedAtLabel = "Issued At:"
	nonceLabel    = "Nonce:"
	addressLabel  = "Address:"
)

// DefaultTemplate renders the canonical challenge message.
const DefaultTemplate = Title + "\n" +
	issuedAtLabel + " {{issuedAt}}\n" +
	nonceLabel + " {{nonce}}\n" +
	addressLabel + " {{address}}"

// Params are the values substituted into a template.
type Params struct {
	Template string
	Address  string
	Nonce    string
	IssuedAt time.Time
}

// Build renders a challenge message. An empty template uses DefaultTemplate.
// The timestamp is rendered in UTC with millisecond precision.
func Build(p Params) string {
	template := p.Template
	if template == "" {
		template = DefaultTemplate
	}

	r := strings.NewReplacer(
		"{{issuedAt}}", p.IssuedAt.UTC().Format(IssuedAtLayout),
		"{{nonce}}", p.Nonce,
		"{{address}}", p.Address,
	)
	return r.Replace(template)
}

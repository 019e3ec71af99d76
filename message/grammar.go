package message

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pilacorp/go-keypass-sdk/chain"
)

// Kind classifies a message validation failure.
type Kind int

const (
	KindTooLong Kind = iota + 1
	KindInvalidFormat
	KindTampered
	KindExpired
	KindFuture
)

func (k Kind) String() string {
	switch k {
	case KindTooLong:
		return "too_long"
	case KindInvalidFormat:
		return "invalid_format"
	case KindTampered:
		return "tampered"
	case KindExpired:
		return "expired"
	case KindFuture:
		return "future"
	default:
		return "unknown"
	}
}

// Error is a message validation failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches errors of the same Kind, so callers can compare against the
// sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Sentinels for errors.Is.
var (
	ErrTooLong       = &Error{Kind: KindTooLong}
	ErrInvalidFormat = &Error{Kind: KindInvalidFormat}
	ErrTampered      = &Error{Kind: KindTampered}
	ErrExpired       = &Error{Kind: KindExpired}
	ErrFuture        = &Error{Kind: KindFuture}
)

func formatError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidFormat, Reason: fmt.Sprintf(format, args...)}
}

// Fields are the values carried by a well-formed challenge message.
type Fields struct {
	IssuedAt time.Time
	Nonce    string
	Address  string
}

// Parse checks the grammar of a challenge message and extracts its fields.
// It does not compare the embedded address with anything; see CheckAddress.
func Parse(message string) (*Fields, error) {
	if n := utf8.RuneCountInString(message); n > MaxLength {
		return nil, &Error{Kind: KindTooLong, Reason: fmt.Sprintf("message is %d characters, maximum is %d", n, MaxLength)}
	}
	if !strings.HasPrefix(message, Title) {
		return nil, formatError("message must start with %q", Title)
	}

	var lines []string
	for _, line := range strings.FieldsFunc(message, isLineBreak) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 4 {
		return nil, formatError("message must have exactly 4 lines, got %d", len(lines))
	}
	if lines[0] != Title {
		return nil, formatError("first line must be %q", Title)
	}

	issuedAt, err := field(lines[1], issuedAtLabel)
	if err != nil {
		return nil, err
	}
	nonce, err := field(lines[2], nonceLabel)
	if err != nil {
		return nil, err
	}
	address, err := field(lines[3], addressLabel)
	if err != nil {
		return nil, err
	}

	ts, perr := time.Parse(time.RFC3339Nano, issuedAt)
	if perr != nil {
		return nil, formatError("invalid timestamp %q", issuedAt)
	}

	return &Fields{IssuedAt: ts, Nonce: nonce, Address: address}, nil
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

// field returns the trimmed value after the first colon of line, which must
// start with label.
func field(line, label string) (string, *Error) {
	if !strings.HasPrefix(line, label) {
		return "", formatError("expected %q line, got %q", label, line)
	}
	_, value, _ := strings.Cut(line, ":")
	value = strings.TrimSpace(value)
	if value == "" {
		return "", formatError("missing value for %q", label)
	}
	return value, nil
}

// CheckAddress compares the embedded address with the address the request
// claims. Substrate addresses compare case-sensitively, EVM addresses
// case-insensitively. A mismatch means message and request disagree about
// the signer and is reported as tampering.
func CheckAddress(fields *Fields, expected string, family chain.Family) error {
	match := fields.Address == expected
	if family == chain.EVM {
		match = strings.EqualFold(fields.Address, expected)
	}
	if !match {
		return &Error{Kind: KindTampered, Reason: "message address does not match the requested address"}
	}
	return nil
}

// Validate parses message and checks that it was issued for expected.
func Validate(message, expected string, family chain.Family) (*Fields, error) {
	fields, err := Parse(message)
	if err != nil {
		return nil, err
	}
	if err := CheckAddress(fields, expected, family); err != nil {
		return nil, err
	}
	return fields, nil
}

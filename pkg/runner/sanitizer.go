package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Limit bounds one kind of text a user hands to a run.
type Limit struct {
	// Name appears in errors, e.g. "request".
	Name string
	// Max is the default size in bytes; Env overrides it when set to a positive integer.
	Max int
	Env string
	// SingleLine folds every whitespace run into one space.
	SingleLine bool
}

var (
	// RequestLimit applies to the opening request and follow-up messages.
	RequestLimit = Limit{Name: "request", Max: 4096, Env: "CONCIERGE_MAX_REQUEST_SIZE"}
	// ReasonLimit applies to the reason a user gives when denying a gated request.
	// The reason is replayed to the model as the tool result, so it stays short.
	ReasonLimit = Limit{Name: "denial reason", Max: 512, Env: "CONCIERGE_MAX_REASON_SIZE", SingleLine: true}
)

// SanitizeRequest cleans a request or follow-up message.
func SanitizeRequest(text string) (string, error) {
	return RequestLimit.Sanitize(text)
}

// SanitizeReason cleans a denial reason.
func SanitizeReason(text string) (string, error) {
	return ReasonLimit.Sanitize(text)
}

// Size returns the effective size limit.
func (l Limit) Size() int {
	if v := os.Getenv(l.Env); l.Env != "" && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return l.Max
}

// Sanitize rejects oversized or invalid UTF-8 text, drops control characters
// other than newline and tab, and trims surrounding whitespace.
// Oversized text is rejected rather than truncated so a run never starts from
// half a request.
func (l Limit) Sanitize(text string) (string, error) {
	if size := l.Size(); len(text) > size {
		return "", fmt.Errorf("%s: %w: size=%d limit=%d", l.Name, ErrInputTooLarge, len(text), size)
	}
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%s: %w", l.Name, ErrInvalidUTF8)
	}

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)

	if l.SingleLine {
		return strings.Join(strings.Fields(text), " "), nil
	}
	return strings.TrimSpace(text), nil
}

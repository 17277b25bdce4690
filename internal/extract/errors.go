package extract

import (
	"errors"
	"fmt"
	"strings"
)

// QuotaMarker is the phrase the relay embeds in quota-exceeded error
// messages. Callers pattern-match it to tell quota failures apart from
// generic ones. Brittle, but it is the wire contract.
const QuotaMarker = "Monthly limit exceeded"

// AuthError means the credential was missing, expired or rejected. It is
// surfaced as a re-authentication prompt and never downgraded to a
// fallback.
type AuthError struct {
	Message string
	Err     error
}

func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) WithCause(err error) *AuthError {
	e.Err = err
	return e
}

// QuotaError means the remote monthly limit was reached. The message is
// propagated verbatim; no fallback is ever attempted.
type QuotaError struct {
	UsageCount int
	Limit      int
	Message    string
}

func (e *QuotaError) Error() string {
	return e.Message
}

// Error is the generic extraction failure: transport trouble, malformed
// model output or schema-invalid payloads. For the remote strategy this
// class (and only this class) permits degradation to the placeholder
// path.
type Error struct {
	Strategy Strategy
	Message  string
	Err      error
}

func NewError(strategy Strategy, message string) *Error {
	return &Error{Strategy: strategy, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction via %s failed: %s", e.Strategy, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// authMessagePatterns are the known upstream phrasings of an
// authentication failure.
var authMessagePatterns = []string{
	"unauthorized",
	"session expired",
	"invalid token",
	"sign in required",
	"access denied",
	"401",
	"not authenticated",
	"authentication failed",
}

// IsAuthMessage reports whether an upstream error message describes an
// authentication failure.
func IsAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range authMessagePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// IsQuotaMessage reports whether an upstream error message signals the
// monthly limit.
func IsQuotaMessage(msg string) bool {
	return strings.Contains(msg, QuotaMarker)
}

// IsAuthError reports whether err is classified as an authentication
// failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsQuotaError reports whether err is classified as a quota failure.
func IsQuotaError(err error) bool {
	var quotaErr *QuotaError
	return errors.As(err, &quotaErr)
}

// Package validate normalizes and checks raw field values before they reach
// the engine. All checks are pure: errors for a field are accumulated, not
// short-circuited, except where a value is too malformed to inspect further.
package validate

import (
	"regexp"
	"strings"
)

// DefaultMaxLen is the length cap applied to simple fields when the caller
// does not pass its own.
const DefaultMaxLen = 255

// FieldError describes one validation failure on one field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// Markup-injection signatures: script-tag openers, inline event-handler
	// attributes, script-URI schemes.
	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)javascript\s*:`),
	}

	upperRegex = regexp.MustCompile(`[A-Z]`)
	lowerRegex = regexp.MustCompile(`[a-z]`)
	digitRegex = regexp.MustCompile(`[0-9]`)
	punctRegex = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=;'~\x60/\\\[\]]`)
)

const disallowedChars = "<>{};&"

// NormalizeEmail trims and case-folds an email address. Storage and
// comparison always use the normalized form.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Field checks a simple text field: length cap, markup-injection signatures,
// and the disallowed character set. An empty value passes; required-ness is
// the caller's rule.
func Field(field, value string, maxLen int) []FieldError {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	value = strings.TrimSpace(value)
	if len(value) > maxLen {
		return []FieldError{{Field: field, Message: "user input error"}}
	}
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(value) {
			return []FieldError{{Field: field, Message: "user input error"}}
		}
	}
	if strings.ContainsAny(value, disallowedChars) {
		return []FieldError{{Field: field, Message: "user input error"}}
	}
	return nil
}

// Email applies strict email-shape matching after case folding.
func Email(field, value string) []FieldError {
	value = NormalizeEmail(value)

	var errs []FieldError
	if value == "" {
		return append(errs, FieldError{Field: field, Message: "email is required"})
	}
	if !emailRegex.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "email format is invalid"})
	}
	return errs
}

// PasswordStrength applies the password policy: minimum length 8, at least
// one uppercase, one lowercase, one digit, and one symbol. Every violated
// rule yields its own error.
func PasswordStrength(field, value string) []FieldError {
	var errs []FieldError
	if len(value) < 8 {
		errs = append(errs, FieldError{Field: field, Message: "password must be at least 8 characters long"})
	}
	if !upperRegex.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "password must contain at least one uppercase letter"})
	}
	if !lowerRegex.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "password must contain at least one lowercase letter"})
	}
	if !digitRegex.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "password must contain at least one digit"})
	}
	if !punctRegex.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "password must contain at least one special character"})
	}
	return errs
}

// PasswordMatch checks the password/confirmation pair.
func PasswordMatch(field, password, confirm string) []FieldError {
	if password != confirm {
		return []FieldError{{Field: field, Message: "passwords do not match"}}
	}
	return nil
}

// Token checks the shape of a token string carried in from a link or form.
func Token(value string, maxLen int) []FieldError {
	return Field("token", value, maxLen)
}

// Registration composes the checks for a registration submission.
func Registration(email, password, confirm string, maxLen int) []FieldError {
	var errs []FieldError
	errs = append(errs, Field("email", email, maxLen)...)
	errs = append(errs, Email("email", email)...)
	errs = append(errs, PasswordStrength("password", password)...)
	errs = append(errs, PasswordMatch("password", password, confirm)...)
	return errs
}

// PasswordReset composes the checks for a reset submission.
func PasswordReset(password, confirm string) []FieldError {
	var errs []FieldError
	errs = append(errs, PasswordStrength("password", password)...)
	errs = append(errs, PasswordMatch("password", password, confirm)...)
	return errs
}

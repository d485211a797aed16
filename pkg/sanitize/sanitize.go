// Package sanitize validates and cleans untrusted request payloads before
// they reach business logic. All validators report pass/fail with reasons;
// none panic on malformed input. Only input beyond the hard byte cap is
// rejected outright, which is enforced here before any parsing.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Hard caps applied before any parsing.
const (
	DefaultMaxJSONBytes = 1 << 20 // 1 MiB
	DefaultMaxJSONDepth = 32
	MaxEmailLength      = 254
	MinPasswordLength   = 8
)

// validate is a singleton validator instance
var validate = validator.New()

// Sanitizer validates and cleans untrusted input. The zero value is not
// usable; construct with NewSanitizer.
type Sanitizer struct {
	MaxJSONBytes int
	MaxJSONDepth int
}

// NewSanitizer returns a sanitizer with the default caps.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		MaxJSONBytes: DefaultMaxJSONBytes,
		MaxJSONDepth: DefaultMaxJSONDepth,
	}
}

// ValidateEmail applies a conservative format check. It rejects obviously
// malformed addresses without attempting full RFC 5321 parsing.
func (s *Sanitizer) ValidateEmail(email string) bool {
	if email == "" || len(email) > MaxEmailLength {
		return false
	}
	return validate.Var(email, "required,email") == nil
}

// ValidatePasswordStrength checks minimum length and character-class
// requirements, returning the specific missing criteria so the caller can
// render actionable feedback.
func (s *Sanitizer) ValidatePasswordStrength(password string) (bool, []string) {
	var reasons []string

	if len(password) < MinPasswordLength {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must contain a digit")
	}

	return len(reasons) == 0, reasons
}

// ValidateLength bounds string size to prevent resource exhaustion via
// oversized fields. Length is measured in bytes.
func (s *Sanitizer) ValidateLength(input string, min, max int) bool {
	if min < 0 || max < min {
		return false
	}
	return len(input) >= min && len(input) <= max
}

// Result describes the outcome of inspecting one input field.
// Consumed synchronously by the caller; never persisted.
type Result struct {
	Field      string   `json:"field"`
	Original   string   `json:"-"`
	Cleaned    string   `json:"cleaned"`
	Violations []string `json:"violations,omitempty"`
}

// OK reports whether the field passed inspection unchanged.
func (r Result) OK() bool {
	return len(r.Violations) == 0
}

// Inspect cleans a single field and records what was wrong with it.
// The cleaned value is always usable; violations tell the caller what was
// stripped or flagged.
func (s *Sanitizer) Inspect(field, value string, maxLength int) Result {
	res := Result{Field: field, Original: value}

	if maxLength > 0 && len(value) > maxLength {
		res.Violations = append(res.Violations, fmt.Sprintf("exceeds max length of %d", maxLength))
		value = value[:maxLength]
	}

	if strings.Contains(value, "\x00") {
		res.Violations = append(res.Violations, "contains null bytes")
	}
	if hasControlChars(value) {
		res.Violations = append(res.Violations, "contains control characters")
	}
	if containsScriptPattern(value) {
		res.Violations = append(res.Violations, "contains script content")
	}
	if containsSQLPattern(value) {
		res.Violations = append(res.Violations, "contains SQL metacharacters")
	}
	if containsPathTraversal(value) {
		res.Violations = append(res.Violations, "contains path traversal sequence")
	}

	res.Cleaned = SanitizeHTML(value)
	return res
}

// Detector patterns, matched case-insensitively against untrusted input.
var (
	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on(error|load|click|focus|mouseover)\s*=`),
		regexp.MustCompile(`(?i)<(iframe|object|embed|svg)`),
		regexp.MustCompile(`(?i)eval\(`),
	}

	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|alter|exec)\b.*\b(from|into|table|where)\b`),
		regexp.MustCompile(`--\s*$`),
		regexp.MustCompile(`/\*.*\*/`),
		regexp.MustCompile(`(?i)'\s*or\s+.+=`),
	}
)

func containsScriptPattern(input string) bool {
	for _, p := range scriptPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

func containsSQLPattern(input string) bool {
	for _, p := range sqlPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

func containsPathTraversal(input string) bool {
	dangerous := []string{
		"../",
		"..\\",
		"%2e%2e",
		"%252e%252e",
		"..;",
		"..%00",
		"..%5c",
	}

	lower := strings.ToLower(input)
	for _, pattern := range dangerous {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// hasControlChars reports whether input contains control characters other
// than common whitespace.
func hasControlChars(input string) bool {
	for _, r := range input {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

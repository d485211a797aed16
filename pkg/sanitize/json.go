package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError carries the field-level reasons a payload was rejected,
// so callers can return a 400 with actionable detail instead of a raw
// parser error.
type ValidationError struct {
	Field   string   `json:"field,omitempty"`
	Reasons []string `json:"reasons"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, strings.Join(e.Reasons, "; "))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Reasons, "; "))
}

// ValidateJSON parses untrusted JSON defensively. Payloads over the byte cap
// are rejected before any parsing; nesting depth is checked with a streaming
// token scan before the value is materialized. Parse failures come back as a
// *ValidationError, never a panic or a raw decoder error.
func (s *Sanitizer) ValidateJSON(raw []byte) (any, error) {
	maxBytes := s.MaxJSONBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxJSONBytes
	}
	maxDepth := s.MaxJSONDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxJSONDepth
	}

	if len(raw) == 0 {
		return nil, &ValidationError{Reasons: []string{"payload is empty"}}
	}
	if len(raw) > maxBytes {
		return nil, &ValidationError{Reasons: []string{
			fmt.Sprintf("payload exceeds maximum size of %d bytes", maxBytes),
		}}
	}

	if err := checkDepth(raw, maxDepth); err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ValidationError{Reasons: []string{"payload is not valid JSON"}}
	}

	return parsed, nil
}

// checkDepth walks the token stream counting open delimiters without
// building the decoded value.
func checkDepth(raw []byte, maxDepth int) error {
	dec := json.NewDecoder(bytes.NewReader(raw))

	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			// Syntax errors are reported by the real decode pass.
			return nil
		}

		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
				if depth > maxDepth {
					return &ValidationError{Reasons: []string{
						fmt.Sprintf("payload nesting exceeds maximum depth of %d", maxDepth),
					}}
				}
			case '}', ']':
				depth--
			}
		}
	}
}

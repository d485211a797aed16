package sanitize

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestSanitizeHTMLProperties verifies invariants that must hold for any
// input, not just the handcrafted cases.
func TestSanitizeHTMLProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property 1: sanitizing twice is the same as sanitizing once. Stored
	// content gets re-sanitized on the way out, so this must hold or data
	// would mutate on every read.
	properties.Property("sanitization is idempotent", prop.ForAll(
		func(input string) bool {
			once := SanitizeHTML(input)
			return SanitizeHTML(once) == once
		},
		gen.AnyString(),
	))

	// Property 2: sanitization only deletes, never injects.
	properties.Property("output never longer than input", prop.ForAll(
		func(input string) bool {
			return len(SanitizeHTML(input)) <= len(input)
		},
		gen.AnyString(),
	))

	// Property 3: no executable remnants survive, however the payload is
	// assembled around the fragment.
	properties.Property("script openings never survive", prop.ForAll(
		func(prefix, suffix string) bool {
			out := strings.ToLower(SanitizeHTML(prefix + "<script>alert(1)</script>" + suffix))
			return !strings.Contains(out, "<script")
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("javascript scheme never survives", prop.ForAll(
		func(prefix, suffix string) bool {
			out := strings.ToLower(SanitizeHTML(prefix + "javascript:alert(1)" + suffix))
			return !strings.Contains(out, "javascript:")
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

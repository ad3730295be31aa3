// Package sanitize cleans free-text form input before it is sent to the
// catalog API. Catalog strings (names, enemy types) are plain text, so all
// markup is stripped using bluemonday's strict policy.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict policy. Initialized once via sync.Once.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// maxPasses bounds the sanitize/decode loop in Text. Each pass removes one
// level of entity encoding, so real input settles in two or three.
const maxPasses = 8

// Text strips every HTML element from input and trims surrounding
// whitespace. Content of script and style elements is dropped entirely.
// Entities are decoded so "Orc & Co" survives as typed; templ escapes it on
// output. Decoding can surface markup that was typed as entities, so the
// result is sanitized again until it stops changing.
func Text(input string) string {
	if input == "" {
		return ""
	}
	p := getPolicy()
	out := input
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(p.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	// Still changing after maxPasses: drop anything that could open a tag.
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(out))
}

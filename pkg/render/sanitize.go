package render

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer rewrites rendered markup.
type Sanitizer interface {
	Sanitize(s string) string
}

// SanitizerFunc adapts a function to the Sanitizer interface.
type SanitizerFunc func(string) string

// Sanitize implements Sanitizer.
func (fn SanitizerFunc) Sanitize(s string) string {
	return fn(s)
}

var (
	ugcPolicyOnce    sync.Once
	ugcPolicy        *bluemonday.Policy
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// UGCSanitizer returns a shared policy that keeps common formatting markup
// and links and drops scripts, styles, and event handler attributes.
func UGCSanitizer() Sanitizer {
	ugcPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("class").Globally()
		policy.AllowElements("section", "article", "header", "footer")
		ugcPolicy = policy
	})
	return ugcPolicy
}

// StrictSanitizer returns a shared policy that strips every tag and keeps
// only text.
func StrictSanitizer() Sanitizer {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

package compiler

import (
	"fmt"
	"strings"
)

// Policy decides what happens to the rest of a batch when one template fails.
type Policy int

const (
	// PolicyAtomic commits the batch only if every template compiles.
	PolicyAtomic Policy = iota
	// PolicyFailFast stops at the first failure; templates compiled earlier in
	// the batch stay compiled.
	PolicyFailFast
	// PolicyBestEffort attempts every template and commits those that compile.
	PolicyBestEffort
)

func (p Policy) String() string {
	switch p {
	case PolicyAtomic:
		return "atomic"
	case PolicyFailFast:
		return "fail-fast"
	case PolicyBestEffort:
		return "best-effort"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names printed by Policy.String. Empty selects
// PolicyAtomic.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "atomic":
		return PolicyAtomic, nil
	case "fail-fast", "failfast":
		return PolicyFailFast, nil
	case "best-effort", "besteffort":
		return PolicyBestEffort, nil
	default:
		return PolicyAtomic, fmt.Errorf("compiler: unknown batch policy %q", value)
	}
}

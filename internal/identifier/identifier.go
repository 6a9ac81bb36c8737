// Package identifier formats and parses the caller-visible sequential keys
// used for challenges (CHAL_001) and conversations (CONV_001).
//
// FORMAT:
//
//	PREFIX_NNN
//	 ^      ^
//	 |      decimal suffix, zero-padded to 3 digits; wider values are not padded
//	 prefix (CHAL or CONV)
//
// Examples: CHAL_001, CHAL_042, CONV_999, CONV_1000.
//
// The numeric value is the source of truth. Storage allocates it from an
// atomic counter (see sqlstore/sequence.go) and this package only derives
// the text form, so two writers can never be handed the same suffix.
package identifier

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix names one identifier namespace.
type Prefix string

const (
	Challenge    Prefix = "CHAL"
	Conversation Prefix = "CONV"
)

// ErrMalformed is returned when an identifier does not match PREFIX_<digits>.
var ErrMalformed = errors.New("identifier: malformed")

// Format renders n in the namespace p. n must be positive.
func Format(p Prefix, n int64) string {
	return fmt.Sprintf("%s_%03d", p, n)
}

// Parse extracts the numeric suffix of s, which must be exactly
// PREFIX_<one or more ASCII digits>.
func Parse(p Prefix, s string) (int64, error) {
	digits, ok := strings.CutPrefix(s, string(p)+"_")
	if !ok || digits == "" {
		return 0, fmt.Errorf("%w: %q is not a %s identifier", ErrMalformed, s, p)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q has a non-numeric suffix", ErrMalformed, s)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return n, nil
}

// Valid reports whether s is a well-formed identifier in namespace p.
func Valid(p Prefix, s string) bool {
	_, err := Parse(p, s)
	return err == nil
}

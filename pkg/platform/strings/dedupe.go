// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeValues flattens optional values into a slice, skipping nil and empty
// entries and dropping repeats. Order of first occurrence is preserved and the
// result is never nil, so it encodes as [] rather than null.
//
// Example:
//
//	DedupeValues([]*string{ptr("a"), nil, ptr("b"), ptr("a")})
//	// Returns: []string{"a", "b"}
func DedupeValues(values []*string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if v == nil || *v == "" {
			continue
		}
		if _, ok := seen[*v]; !ok {
			seen[*v] = struct{}{}
			result = append(result, *v)
		}
	}

	return result
}

// BlankToNil returns nil for nil or whitespace-only input and v unchanged
// otherwise. Surrounding whitespace on a non-blank value is kept.
//
// Example:
//
//	BlankToNil(ptr("   "))        // nil
//	BlankToNil(ptr(" a@x.com "))  // ptr(" a@x.com ")
func BlankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

// Equal reports whether two optional strings are both nil or hold the same value.
func Equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

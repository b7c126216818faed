package sig

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// NormalizeBytecode validates and normalizes a bytecode hex string to
// lowercase with no 0x prefix. Substring matching and scanning operate on
// this form.
func NormalizeBytecode(code string) (string, error) {
	code = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(code), "0x"))
	for _, r := range code {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("%w: bytecode: non-hex character %q", ErrInvalidInput, r)
		}
	}
	return code, nil
}

// IsCompatible reports whether every selector extracted from the ABI occurs
// in the bytecode's hex text. This is a textual substring test, not an
// opcode-level check: a selector byte sequence inside unrelated push data or
// metadata also matches. The approximation is deliberate and mirrored by the
// bytecode classifier.
func IsCompatible(abiJSON []byte, code string) (bool, error) {
	sigs, err := FromABI(abiJSON)
	if err != nil {
		return false, err
	}
	norm, err := NormalizeBytecode(code)
	if err != nil {
		return false, err
	}
	return ContainsAll(sigs, norm), nil
}

// ContainsAll reports whether each selector in the set occurs as a substring
// of normalized bytecode hex.
func ContainsAll(sigs mapset.Set[string], normCode string) bool {
	all := true
	sigs.Each(func(sel string) bool {
		if !strings.Contains(normCode, sel) {
			all = false
			return true // stop iteration
		}
		return false
	})
	return all
}

// CountContained returns how many selectors in the set occur in normalized
// bytecode hex.
func CountContained(sigs mapset.Set[string], normCode string) int {
	n := 0
	sigs.Each(func(sel string) bool {
		if strings.Contains(normCode, sel) {
			n++
		}
		return false
	})
	return n
}

// Package sig extracts canonical selector signatures from contract ABIs.
//
// Function selectors are the first 4 bytes of the Keccak-256 hash of the
// canonical signature string, event topics the full 32 bytes. Selectors are
// kept as lowercase hex without the 0x prefix and with leading zero nibbles
// stripped, so a selector can be located in bytecode regardless of how the
// compiler padded the push that carries it.
package sig

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidInput marks malformed caller data (non-array ABI JSON, non-hex
// bytecode). Classification layers fail fast with it instead of propagating a
// cryptic downstream failure.
var ErrInvalidInput = errors.New("invalid input")

// Arg is the single ABI entry field that matters for signature derivation.
type Arg struct {
	Type string `json:"type"`
}

// Item is one entry of a standard Ethereum ABI JSON document. Entries of a
// kind other than function/event are skipped by the extractor.
type Item struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Inputs []Arg  `json:"inputs"`
}

// Parse decodes ABI JSON into items. The document must be a JSON array.
func Parse(raw []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: abi: %v", ErrInvalidInput, err)
	}
	return items, nil
}

// FromABI returns the canonical selector set for an ABI JSON document:
// 4-byte selectors for functions, 32-byte topics for events, flattened into
// one unordered, deduplicated set.
func FromABI(raw []byte) (mapset.Set[string], error) {
	items, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// FromItems extracts the selector set from already-parsed ABI items.
func FromItems(items []Item) mapset.Set[string] {
	out := mapset.NewThreadUnsafeSet[string]()
	for _, item := range items {
		switch item.Type {
		case "function":
			if sel := FunctionSelector(item.Name, item.Inputs); sel != "" {
				out.Add(sel)
			}
		case "event":
			if topic := EventTopic(item.Name, item.Inputs); topic != "" {
				out.Add(topic)
			}
		}
	}
	return out
}

// FunctionSelector derives the canonical 4-byte selector for a function.
// Returns "" for entries that cannot form a signature (no name).
func FunctionSelector(name string, inputs []Arg) string {
	s := signature(name, inputs)
	if s == "" {
		return ""
	}
	return Canonical(keccakHex(s, 4))
}

// EventTopic derives the canonical 32-byte topic hash for an event.
func EventTopic(name string, inputs []Arg) string {
	s := signature(name, inputs)
	if s == "" {
		return ""
	}
	return Canonical(keccakHex(s, 32))
}

// Canonical normalizes a selector or topic: lowercase hex, no 0x prefix,
// leading zero nibbles stripped. An all-zero selector collapses to "0".
func Canonical(h string) string {
	h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "0x"))
	trimmed := strings.TrimLeft(h, "0")
	if trimmed == "" && h != "" {
		return "0"
	}
	return trimmed
}

func signature(name string, inputs []Arg) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	types := make([]string, len(inputs))
	for i, arg := range inputs {
		t := strings.ReplaceAll(strings.TrimSpace(arg.Type), " ", "")
		if t == "" {
			return ""
		}
		types[i] = t
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(types, ","))
}

func keccakHex(sig string, size int) string {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(sig))
	sum := hasher.Sum(nil)
	if size > len(sum) {
		size = len(sum)
	}
	return hex.EncodeToString(sum[:size])
}

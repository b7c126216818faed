package sig

import (
	"math/rand"
	"testing"
)

func TestFunctionSelector_Canonical(t *testing.T) {
	cases := []struct {
		name   string
		inputs []Arg
		want   string
	}{
		{"transfer", []Arg{{Type: "address"}, {Type: "uint256"}}, "a9059cbb"},
		{"balanceOf", []Arg{{Type: "address"}}, "70a08231"},
		{"totalSupply", nil, "18160ddd"},
		// approve's selector begins with a zero byte; the leading zero nibble
		// is stripped so bytecode substring search is padding-insensitive.
		{"approve", []Arg{{Type: "address"}, {Type: "uint256"}}, "95ea7b3"},
		{"ownerOf", []Arg{{Type: "uint256"}}, "6352211e"},
	}
	for _, tc := range cases {
		if got := FunctionSelector(tc.name, tc.inputs); got != tc.want {
			t.Errorf("FunctionSelector(%s): got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestEventTopic(t *testing.T) {
	got := EventTopic("Transfer", []Arg{{Type: "address"}, {Type: "address"}, {Type: "uint256"}})
	want := "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got != want {
		t.Errorf("EventTopic(Transfer): got %q want %q", got, want)
	}
}

func TestCanonical(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0xA9059CBB", "a9059cbb"},
		{"095ea7b3", "95ea7b3"},
		{"0x00000000", "0"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Canonical(tc.in); got != tc.want {
			t.Errorf("Canonical(%q): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFromABI_OrderIndependentAndIdempotent(t *testing.T) {
	abiJSON := []byte(`[
		{"type":"function","name":"transfer","inputs":[{"type":"address"},{"type":"uint256"}]},
		{"type":"function","name":"balanceOf","inputs":[{"type":"address"}]},
		{"type":"event","name":"Transfer","inputs":[{"type":"address"},{"type":"address"},{"type":"uint256"}]},
		{"type":"constructor","inputs":[]},
		{"type":"fallback"}
	]`)
	ref, err := FromABI(abiJSON)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Cardinality() != 3 {
		t.Fatalf("expected 3 sigs, got %d: %v", ref.Cardinality(), ref)
	}

	items, err := Parse(abiJSON)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		rng.Shuffle(len(items), func(a, b int) { items[a], items[b] = items[b], items[a] })
		if got := FromItems(items); !got.Equal(ref) {
			t.Fatalf("shuffled extraction differs: %v vs %v", got, ref)
		}
	}
}

func TestFromABI_SkipsMalformedEntries(t *testing.T) {
	abiJSON := []byte(`[
		{"type":"function","name":"","inputs":[]},
		{"type":"function","name":"transfer","inputs":[{"type":"address"},{"type":"uint256"}]},
		{"type":"mystery","name":"whatever"}
	]`)
	set, err := FromABI(abiJSON)
	if err != nil {
		t.Fatal(err)
	}
	if set.Cardinality() != 1 || !set.Contains("a9059cbb") {
		t.Fatalf("unexpected set: %v", set)
	}
}

func TestFromABI_InvalidInput(t *testing.T) {
	for _, raw := range []string{`{"not":"an array"}`, `nonsense`} {
		if _, err := FromABI([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

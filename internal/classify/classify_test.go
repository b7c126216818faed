package classify

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	fixtureabi "github.com/tokenscope/tokenscope/fixtures/abi"
	"github.com/tokenscope/tokenscope/internal/proxy"
	"github.com/tokenscope/tokenscope/internal/registry"
	"github.com/tokenscope/tokenscope/internal/sig"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	reg, err := registry.New()
	if err != nil {
		t.Fatal(err)
	}
	return New(reg)
}

func TestByABI_CanonicalSurfaces(t *testing.T) {
	c := newClassifier(t)
	cases := []struct {
		name string
		abi  []byte
		want registry.Standard
	}{
		{"erc20", fixtureabi.ERC20, registry.ERC20},
		{"erc20_max", fixtureabi.ERC20Max, registry.ERC20},
		{"erc721", fixtureabi.ERC721, registry.ERC721},
		{"erc1155", fixtureabi.ERC1155, registry.ERC1155},
		{"erc1155_max", fixtureabi.ERC1155Max, registry.ERC1155},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			std, ok, err := c.ByABI(tc.abi)
			if err != nil {
				t.Fatal(err)
			}
			if !ok || std != tc.want {
				t.Fatalf("got (%s, %v), want %s", std, ok, tc.want)
			}
		})
	}
}

func TestByABI_MissingMandatorySelector(t *testing.T) {
	c := newClassifier(t)

	// ERC20 min without transfer: the gate must fail, not degrade to a
	// partial match.
	var items []sig.Item
	if err := json.Unmarshal(fixtureabi.ERC20Min, &items); err != nil {
		t.Fatal(err)
	}
	var kept []sig.Item
	for _, it := range items {
		if it.Name != "transfer" {
			kept = append(kept, it)
		}
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		t.Fatal(err)
	}
	std, ok, err := c.ByABI(raw)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected no match, got %s", std)
	}
}

func TestByABI_InvalidInput(t *testing.T) {
	c := newClassifier(t)
	if _, _, err := c.ByABI([]byte(`"not an abi"`)); !errors.Is(err, sig.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestByABIPercent_Threshold(t *testing.T) {
	c := newClassifier(t)

	// 4 of the 8 selectors in the ERC20 full surface, chosen to barely
	// overlap the other standards.
	half := []byte(`[
		{"type":"function","name":"totalSupply","inputs":[]},
		{"type":"function","name":"transfer","inputs":[{"type":"address"},{"type":"uint256"}]},
		{"type":"function","name":"transferFrom","inputs":[{"type":"address"},{"type":"address"},{"type":"uint256"}]},
		{"type":"function","name":"allowance","inputs":[{"type":"address"},{"type":"address"}]}
	]`)

	std, ok, err := c.ByABIPercent(half, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || std != registry.ERC20 {
		t.Fatalf("threshold 50: got (%s, %v), want ERC20", std, ok)
	}

	if _, ok, err = c.ByABIPercent(half, 51); err != nil || ok {
		t.Fatalf("threshold 51: expected no match, got ok=%v err=%v", ok, err)
	}

	std, ok, err = c.ByABIPercent(fixtureabi.ERC20, DefaultPercentThreshold)
	if err != nil || !ok || std != registry.ERC20 {
		t.Fatalf("full surface at default threshold: got (%s, %v, %v)", std, ok, err)
	}
}

func TestByABIPercent_TieGoesToRicherStandard(t *testing.T) {
	c := newClassifier(t)

	// An ABI covering both ERC20 and ERC721 in full scores 100% for both;
	// the tie resolves to the standard with the larger full surface.
	var a, b []json.RawMessage
	if err := json.Unmarshal(fixtureabi.ERC20, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(fixtureabi.ERC721, &b); err != nil {
		t.Fatal(err)
	}
	merged, err := json.Marshal(append(a, b...))
	if err != nil {
		t.Fatal(err)
	}

	std, ok, err := c.ByABIPercent(merged, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || std != registry.ERC721 {
		t.Fatalf("got (%s, %v), want ERC721", std, ok)
	}
}

// erc20MinCode pushes every mandatory ERC20 selector the way a dispatcher
// would. Presence checks are substring matches over the hex text, so this is
// enough to satisfy the gate.
const erc20MinCode = "0x6318160ddd6370a0823163a9059cbb6323b872dd63095ea7b363dd62ed3e"

func TestByBytecode(t *testing.T) {
	c := newClassifier(t)
	out, err := c.ByBytecode(erc20MinCode)
	if err != nil {
		t.Fatal(err)
	}
	if out.Standard != registry.ERC20 || out.Proxy != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestByBytecode_ProxyFallback(t *testing.T) {
	c := newClassifier(t)
	code := "0x73" + strings.Repeat("aa", 20) + "5af4"
	out, err := c.ByBytecode(code)
	if err != nil {
		t.Fatal(err)
	}
	if out.Standard != "" || out.Proxy == nil || out.Proxy.Kind != proxy.Target {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestByBytecode_Neither(t *testing.T) {
	c := newClassifier(t)
	out, err := c.ByBytecode("0x6001600101")
	if err != nil {
		t.Fatal(err)
	}
	if !out.None() {
		t.Fatalf("expected empty outcome, got %+v", out)
	}
}

func TestByBytecodePercent(t *testing.T) {
	c := newClassifier(t)

	// 4 of 8 full-surface selectors present as push data.
	code := "0x6318160ddd63a9059cbb6323b872dd63dd62ed3e"
	out, err := c.ByBytecodePercent(code, 50)
	if err != nil {
		t.Fatal(err)
	}
	if out.Standard != registry.ERC20 {
		t.Fatalf("threshold 50: got %+v", out)
	}

	out, err = c.ByBytecodePercent(code, 51)
	if err != nil {
		t.Fatal(err)
	}
	if !out.None() {
		t.Fatalf("threshold 51: expected empty outcome, got %+v", out)
	}
}

func TestByBytecode_InvalidInput(t *testing.T) {
	c := newClassifier(t)
	if _, err := c.ByBytecode("0xnothex"); !errors.Is(err, sig.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

// Package tokenscope is the public entry point for contract classification:
// which token standard (ERC-20/721/1155) a contract implements, judged from
// its ABI or deployed bytecode, and what proxy-delegation pattern it uses.
//
// "No match" and "no target" are reported through boolean/nil results, never
// as errors; only malformed input or an unreachable provider surfaces as an
// error.
package tokenscope

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tokenscope/tokenscope/internal/classify"
	"github.com/tokenscope/tokenscope/internal/config"
	"github.com/tokenscope/tokenscope/internal/eth"
	"github.com/tokenscope/tokenscope/internal/proxy"
	"github.com/tokenscope/tokenscope/internal/registry"
	"github.com/tokenscope/tokenscope/internal/resolve"
	"github.com/tokenscope/tokenscope/internal/sig"
)

// ErrInvalidInput marks malformed ABI JSON or non-hex bytecode.
var ErrInvalidInput = sig.ErrInvalidInput

// DefaultPercentThreshold is the legacy percent-mode cutoff.
const DefaultPercentThreshold = classify.DefaultPercentThreshold

// Proxy describes a detected delegation pattern. Target is set only for
// kind "target". Kind is one of "target", "implementation", "delegatecall".
type Proxy struct {
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	Immutable bool   `json:"immutable,omitempty"`
}

// Classification is the terminal result of bytecode classification: a
// standard label, a proxy finding, or neither.
type Classification struct {
	Standard string `json:"standard,omitempty"`
	Proxy    *Proxy `json:"proxy,omitempty"`
}

// None reports whether classification produced nothing.
func (c Classification) None() bool { return c.Standard == "" && c.Proxy == nil }

var defaultRegistry = sync.OnceValues(registry.New)

func classifier() (*classify.Classifier, error) {
	reg, err := defaultRegistry()
	if err != nil {
		return nil, err
	}
	return classify.New(reg), nil
}

// GetSigs extracts the canonical selector set of an ABI JSON document,
// sorted for stable output. The set is order-independent over the ABI.
func GetSigs(abiJSON []byte) ([]string, error) {
	set, err := sig.FromABI(abiJSON)
	if err != nil {
		return nil, err
	}
	out := set.ToSlice()
	sort.Strings(out)
	return out, nil
}

// IsABI reports whether every selector of the ABI occurs in the bytecode's
// hex text. This is substring matching, not a semantic dispatcher check.
func IsABI(abiJSON []byte, bytecode string) (bool, error) {
	return sig.IsCompatible(abiJSON, bytecode)
}

// GetErcByAbi classifies an ABI with the min-gate + max-score strategy.
// The second return is false when no standard's mandatory surface is fully
// present.
func GetErcByAbi(abiJSON []byte) (string, bool, error) {
	c, err := classifier()
	if err != nil {
		return "", false, err
	}
	std, ok, err := c.ByABI(abiJSON)
	return string(std), ok, err
}

// GetErcByAbiPercent classifies an ABI with the legacy percent strategy
// against the given threshold (0-100).
func GetErcByAbiPercent(abiJSON []byte, threshold float64) (string, bool, error) {
	c, err := classifier()
	if err != nil {
		return "", false, err
	}
	std, ok, err := c.ByABIPercent(abiJSON, threshold)
	return string(std), ok, err
}

// GetErcByBytecode classifies deployed bytecode with the min-gate strategy,
// falling back to proxy detection when no standard matches.
func GetErcByBytecode(bytecode string) (Classification, error) {
	c, err := classifier()
	if err != nil {
		return Classification{}, err
	}
	out, err := c.ByBytecode(bytecode)
	if err != nil {
		return Classification{}, err
	}
	return fromOutcome(out), nil
}

// GetErcByBytecodePercent is the percent-strategy variant of
// GetErcByBytecode.
func GetErcByBytecodePercent(bytecode string, threshold float64) (Classification, error) {
	c, err := classifier()
	if err != nil {
		return Classification{}, err
	}
	out, err := c.ByBytecodePercent(bytecode, threshold)
	if err != nil {
		return Classification{}, err
	}
	return fromOutcome(out), nil
}

// GetProxyStatus inspects bytecode for a delegation pattern. A nil result
// means the contract is not a proxy.
func GetProxyStatus(bytecode string) (*Proxy, error) {
	f, err := proxy.Inspect(bytecode)
	if err != nil {
		return nil, err
	}
	return fromFinding(f), nil
}

// GetProxyAddress resolves the delegate target of address through the given
// RPC endpoint, racing storage-slot and interface-call probes when the
// bytecode holds no literal target. bytecode may be passed to skip the
// eth_getCode round trip. The second return is false when no target was
// found.
func GetProxyAddress(ctx context.Context, address, rpcURL, bytecode string) (string, bool, error) {
	prov, err := newProvider(rpcURL)
	if err != nil {
		return "", false, err
	}
	target, ok, err := proxy.NewProber(prov).Target(ctx, address, bytecode)
	if err != nil || !ok {
		return "", false, err
	}
	return strings.ToLower(target.Hex()), true, nil
}

// GetProxyAddresses resolves every delegate target probe hit for address,
// deduplicated, in probe-priority order.
func GetProxyAddresses(ctx context.Context, address, rpcURL, bytecode string) ([]string, error) {
	prov, err := newProvider(rpcURL)
	if err != nil {
		return nil, err
	}
	r, err := newResolver(prov)
	if err != nil {
		return nil, err
	}
	return r.Targets(ctx, address, bytecode)
}

// GetErcByNode classifies the contract at address, chasing proxy links
// through the given RPC endpoint when its own bytecode yields no standard.
// bytecode may be passed to skip the initial eth_getCode round trip.
func GetErcByNode(ctx context.Context, address, rpcURL, bytecode string) (Classification, error) {
	prov, err := newProvider(rpcURL)
	if err != nil {
		return Classification{}, err
	}
	r, err := newResolver(prov)
	if err != nil {
		return Classification{}, err
	}
	out, err := r.Classify(ctx, address, bytecode)
	if err != nil {
		return Classification{}, err
	}
	return fromOutcome(out), nil
}

func newProvider(rpcURL string) (eth.Provider, error) {
	cfg := config.Load()
	return eth.NewProvider(rpcURL, cfg.RateLimit, cfg.HTTPRetries, cfg.HTTPBackoffBase)
}

func newResolver(prov eth.Provider) (*resolve.Resolver, error) {
	reg, err := defaultRegistry()
	if err != nil {
		return nil, err
	}
	cfg := config.Load()
	return resolve.New(prov, classify.New(reg), resolve.Options{MaxNodes: cfg.MaxProxyHops}), nil
}

func fromOutcome(out classify.Outcome) Classification {
	c := Classification{Standard: string(out.Standard)}
	if out.Proxy != nil {
		c.Proxy = fromFinding(*out.Proxy)
	}
	return c
}

func fromFinding(f proxy.Finding) *Proxy {
	if f.Kind == proxy.None {
		return nil
	}
	p := &Proxy{Kind: f.Kind.String(), Immutable: f.Immutable}
	if f.Kind == proxy.Target {
		p.Target = strings.ToLower(f.Target.Hex())
	}
	return p
}

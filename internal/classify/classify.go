// Package classify scores candidate ABIs and bytecode against the registered
// token standards. Two historical strategies coexist and are selected
// explicitly by the caller: a percent-of-full-surface threshold, and a
// min-gate that requires every mandatory selector and then ranks by optional
// coverage.
package classify

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tokenscope/tokenscope/internal/logging"
	"github.com/tokenscope/tokenscope/internal/proxy"
	"github.com/tokenscope/tokenscope/internal/registry"
	"github.com/tokenscope/tokenscope/internal/sig"
)

// DefaultPercentThreshold is the legacy percent-mode cutoff: a standard must
// be fully covered to match.
const DefaultPercentThreshold = 100.0

// Outcome is the terminal result of bytecode classification: a standard, a
// proxy finding, or neither. "Neither" is a valid absence value, not an
// error.
type Outcome struct {
	Standard registry.Standard
	Proxy    *proxy.Finding
}

// None reports whether classification produced nothing.
func (o Outcome) None() bool { return o.Standard == "" && o.Proxy == nil }

// Classifier scores candidates against an injected registry. It is stateless
// beyond the read-only registry and safe for concurrent use.
type Classifier struct {
	reg *registry.Registry
	log *slog.Logger
}

func New(reg *registry.Registry) *Classifier {
	return &Classifier{reg: reg, log: logging.Logger()}
}

// ByABI classifies with the min-gate + max-score strategy: only standards
// whose entire min tier is present qualify; among those, the count of max
// tier selectors present wins. A score tie resolves to the first qualifying
// standard in registry order.
func (c *Classifier) ByABI(abiJSON []byte) (registry.Standard, bool, error) {
	sigs, err := sig.FromABI(abiJSON)
	if err != nil {
		return "", false, err
	}
	std, ok := c.minGate(func(s mapset.Set[string]) bool {
		return s.IsSubset(sigs)
	}, func(s mapset.Set[string]) int {
		return s.Intersect(sigs).Cardinality()
	})
	return std, ok, nil
}

// ByABIPercent classifies with the legacy percent strategy: the share of each
// standard's full tier present in the ABI, highest wins, richer standard
// breaking ties. Returns no match when the best share is below threshold.
func (c *Classifier) ByABIPercent(abiJSON []byte, threshold float64) (registry.Standard, bool, error) {
	sigs, err := sig.FromABI(abiJSON)
	if err != nil {
		return "", false, err
	}
	std, ok := c.percent(threshold, func(s mapset.Set[string]) int {
		return s.Intersect(sigs).Cardinality()
	})
	return std, ok, nil
}

// ByBytecode is the bytecode analogue of ByABI: selector presence is a
// substring test against the bytecode hex, which can false-positive on
// incidental push data. When no standard matches, the proxy detector runs
// and its finding, if any, becomes the outcome.
func (c *Classifier) ByBytecode(code string) (Outcome, error) {
	norm, err := sig.NormalizeBytecode(code)
	if err != nil {
		return Outcome{}, err
	}
	std, ok := c.minGate(func(s mapset.Set[string]) bool {
		return sig.ContainsAll(s, norm)
	}, func(s mapset.Set[string]) int {
		return sig.CountContained(s, norm)
	})
	if ok {
		return Outcome{Standard: std}, nil
	}
	return c.proxyFallback(norm)
}

// ByBytecodePercent is the percent-strategy analogue of ByBytecode, with the
// same proxy fallback.
func (c *Classifier) ByBytecodePercent(code string, threshold float64) (Outcome, error) {
	norm, err := sig.NormalizeBytecode(code)
	if err != nil {
		return Outcome{}, err
	}
	std, ok := c.percent(threshold, func(s mapset.Set[string]) int {
		return sig.CountContained(s, norm)
	})
	if ok {
		return Outcome{Standard: std}, nil
	}
	return c.proxyFallback(norm)
}

func (c *Classifier) proxyFallback(norm string) (Outcome, error) {
	f, err := proxy.Inspect(norm)
	if err != nil {
		return Outcome{}, err
	}
	if f.Kind == proxy.None {
		return Outcome{}, nil
	}
	return Outcome{Proxy: &f}, nil
}

// minGate applies the min-gate + max-score strategy over the registry, with
// presence and overlap abstracted so the ABI and bytecode paths share the
// scoring.
func (c *Classifier) minGate(minSatisfied func(mapset.Set[string]) bool, maxOverlap func(mapset.Set[string]) int) (registry.Standard, bool) {
	var (
		best      registry.Standard
		bestScore = -1
	)
	for _, spec := range c.reg.Specs() {
		if !minSatisfied(spec.Min) {
			continue
		}
		if score := maxOverlap(spec.Max); score > bestScore {
			best = spec.Standard
			bestScore = score
		}
	}
	if bestScore < 0 {
		return "", false
	}
	return best, true
}

// percent applies the percent-threshold strategy. Ties on percent go to the
// standard with the larger full tier.
func (c *Classifier) percent(threshold float64, fullOverlap func(mapset.Set[string]) int) (registry.Standard, bool) {
	var (
		best     registry.Standard
		bestPct  = -1.0
		bestSize = -1
	)
	for _, spec := range c.reg.Specs() {
		total := spec.Full.Cardinality()
		if total == 0 {
			continue
		}
		pct := 100 * float64(fullOverlap(spec.Full)) / float64(total)
		if pct > bestPct || (pct == bestPct && total > bestSize) {
			best = spec.Standard
			bestPct = pct
			bestSize = total
		}
	}
	if bestPct < threshold {
		return "", false
	}
	c.log.Debug("percent_match",
		"component", "classify",
		"standard", string(best),
		"percent", bestPct,
	)
	return best, true
}

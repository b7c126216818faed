// Package resolve follows proxy links to classify the implementation behind
// an address when its own bytecode yields no standard match.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tokenscope/tokenscope/internal/classify"
	"github.com/tokenscope/tokenscope/internal/eth"
	"github.com/tokenscope/tokenscope/internal/logging"
	"github.com/tokenscope/tokenscope/internal/proxy"
)

// DefaultMaxNodes bounds the proxy graph walk. The visited set already
// guarantees termination on cycles; the bound caps pathological chains.
const DefaultMaxNodes = 16

// Options tunes a Resolver.
type Options struct {
	// MaxNodes caps how many distinct addresses one resolution may visit.
	// Zero means DefaultMaxNodes.
	MaxNodes int
}

// Resolver walks the lazily discovered proxy graph: fetch code, collect
// delegate targets, repeat for unvisited targets, then classify the
// concatenation of everything visited in one pass.
type Resolver struct {
	prov     eth.Provider
	cls      *classify.Classifier
	prober   *proxy.Prober
	maxNodes int
	log      *slog.Logger
}

func New(prov eth.Provider, cls *classify.Classifier, opts Options) *Resolver {
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Resolver{
		prov:     prov,
		cls:      cls,
		prober:   proxy.NewProber(prov),
		maxNodes: maxNodes,
		log:      logging.Logger(),
	}
}

// Classify resolves the standard for address. If code is empty it is
// fetched. The address's own bytecode is classified first; only when that
// produces no standard does the resolver chase proxy targets, visiting each
// address at most once, and reclassify over the combined code of every
// contract on the chain.
func (r *Resolver) Classify(ctx context.Context, address, code string) (classify.Outcome, error) {
	start := time.Now()
	addrKey := strings.ToLower(address)
	if code == "" {
		fetched, err := r.prov.GetCode(ctx, addrKey)
		if err != nil {
			return classify.Outcome{}, err
		}
		code = fetched
	}
	direct, err := r.cls.ByBytecode(code)
	if err != nil {
		return classify.Outcome{}, err
	}
	if direct.Standard != "" {
		return direct, nil
	}

	visited := map[string]struct{}{}
	var codes []string
	worklist := []string{addrKey}
	codeFor := map[string]string{addrKey: code}
	for len(worklist) > 0 && len(visited) < r.maxNodes {
		if err := ctx.Err(); err != nil {
			return classify.Outcome{}, err
		}
		node := worklist[0]
		worklist = worklist[1:]
		if _, seen := visited[node]; seen {
			continue
		}
		visited[node] = struct{}{}

		nodeCode, ok := codeFor[node]
		if !ok {
			fetched, fetchErr := r.prov.GetCode(ctx, node)
			if fetchErr != nil {
				// A dead edge does not abort the walk; the remaining chain may
				// still classify.
				r.log.Warn("resolve_fetch_failed",
					"component", "resolve",
					"address", node,
					"error", fetchErr.Error(),
				)
				continue
			}
			nodeCode = fetched
		}
		codes = append(codes, strings.TrimPrefix(strings.ToLower(nodeCode), "0x"))

		targets, targetsErr := r.prober.Targets(ctx, node, nodeCode)
		if targetsErr != nil {
			r.log.Warn("resolve_probe_failed",
				"component", "resolve",
				"address", node,
				"error", targetsErr.Error(),
			)
			continue
		}
		for _, t := range targets {
			key := strings.ToLower(t.Hex())
			if _, seen := visited[key]; !seen {
				worklist = append(worklist, key)
			}
		}
	}

	out, err := r.cls.ByBytecode(strings.Join(codes, ""))
	if err != nil {
		return classify.Outcome{}, err
	}
	r.log.Info("resolve_done",
		"component", "resolve",
		"address", addrKey,
		"visited", len(visited),
		"standard", string(out.Standard),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Targets exposes the prober's full multi-target discovery for one address.
func (r *Resolver) Targets(ctx context.Context, address, code string) ([]string, error) {
	targets, err := r.prober.Targets(ctx, address, code)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, strings.ToLower(t.Hex()))
	}
	return out, nil
}

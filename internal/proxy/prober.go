package proxy

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokenscope/tokenscope/internal/eth"
	"github.com/tokenscope/tokenscope/internal/logging"
)

// Known proxy storage slots, per the respective specs.
const (
	// EIP-1967: keccak256("eip1967.proxy.implementation") - 1
	slotEIP1967Logic = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	// EIP-1967: keccak256("eip1967.proxy.beacon") - 1
	slotEIP1967Beacon = "0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50"
	// EIP-1822 (UUPS): keccak256("PROXIABLE")
	slotEIP1822Logic = "0xc5f16f0fcc639fa48a6947836d9850f504798523bf8c9a3a87d5876cf622bcf7"
	// Pre-1967 OpenZeppelin: keccak256("org.zeppelinos.proxy.implementation")
	slotZeppelinLogic = "0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3"
)

// Known proxy-introspection selectors called on the proxy (or its beacon).
const (
	callImplementation      = "0x5c60da1b" // implementation()
	callChildImplementation = "0xda525716" // childImplementation()
	callMasterCopy          = "0xa619486e" // masterCopy(), Gnosis Safe
	callComptrollerImpl     = "0xbb82aa5e" // comptrollerImplementation()
)

// Prober resolves proxy targets through a live node when bytecode inspection
// alone cannot produce an address.
type Prober struct {
	prov eth.Provider
}

func NewProber(prov eth.Provider) *Prober {
	return &Prober{prov: prov}
}

type probe struct {
	name string
	run  func(ctx context.Context) (common.Address, error)
}

func (p *Prober) probes(address string) []probe {
	slotProbe := func(name, slot string) probe {
		return probe{name: name, run: func(ctx context.Context) (common.Address, error) {
			word, err := p.prov.GetStorageAt(ctx, address, slot)
			if err != nil {
				return common.Address{}, err
			}
			return decodeAddressWord(word)
		}}
	}
	callProbe := func(name, data string) probe {
		return probe{name: name, run: func(ctx context.Context) (common.Address, error) {
			res, err := p.prov.Call(ctx, address, data)
			if err != nil {
				return common.Address{}, err
			}
			return decodeAddressWord(res)
		}}
	}
	return []probe{
		slotProbe("eip1967_logic_slot", slotEIP1967Logic),
		{name: "eip1967_beacon_slot", run: p.beaconProbe(address)},
		slotProbe("eip1822_logic_slot", slotEIP1822Logic),
		slotProbe("zeppelin_logic_slot", slotZeppelinLogic),
		callProbe("implementation_call", callImplementation),
		callProbe("master_copy_call", callMasterCopy),
		callProbe("comptroller_call", callComptrollerImpl),
	}
}

// beaconProbe reads the EIP-1967 beacon slot and asks the beacon contract for
// its implementation.
func (p *Prober) beaconProbe(address string) func(ctx context.Context) (common.Address, error) {
	return func(ctx context.Context) (common.Address, error) {
		word, err := p.prov.GetStorageAt(ctx, address, slotEIP1967Beacon)
		if err != nil {
			return common.Address{}, err
		}
		beacon, err := decodeAddressWord(word)
		if err != nil {
			return common.Address{}, err
		}
		var lastErr error
		for _, data := range []string{callImplementation, callChildImplementation} {
			res, callErr := p.prov.Call(ctx, beacon.Hex(), data)
			if callErr != nil {
				lastErr = callErr
				continue
			}
			addr, decErr := decodeAddressWord(res)
			if decErr != nil {
				lastErr = decErr
				continue
			}
			return addr, nil
		}
		return common.Address{}, lastErr
	}
}

// Target races every probe concurrently and returns the first fulfilling
// result. If code is non-empty it is inspected first: a literal bytecode
// target short-circuits the network entirely. Per-probe failures are logged
// and swallowed; if every probe fails the result is "no target found", not an
// error.
func (p *Prober) Target(ctx context.Context, address, code string) (common.Address, bool, error) {
	code, err := p.ensureCode(ctx, address, code)
	if err != nil {
		return common.Address{}, false, err
	}
	if f, inspectErr := Inspect(code); inspectErr == nil && f.Kind == Target {
		return f.Target, true, nil
	} else if inspectErr == nil && f.Kind == None {
		return common.Address{}, false, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	probes := p.probes(address)
	results := make(chan common.Address, len(probes))
	failures := make(chan error, len(probes))
	for _, pr := range probes {
		pr := pr
		go func() {
			addr, probeErr := pr.run(ctx)
			if probeErr != nil {
				logging.Logger().Warn("proxy_probe_failed",
					"component", "proxy.prober",
					"probe", pr.name,
					"address", strings.ToLower(address),
					"error", probeErr.Error(),
				)
				failures <- probeErr
				return
			}
			results <- addr
		}()
	}
	for range probes {
		select {
		case addr := <-results:
			return addr, true, nil
		case <-failures:
			// losers are simply discarded
		case <-ctx.Done():
			return common.Address{}, false, ctx.Err()
		}
	}
	return common.Address{}, false, nil
}

// Targets runs every probe and collects all distinct resolved addresses, in
// probe-priority order. Used by the chained resolver, which follows every
// discovered edge rather than just the first.
func (p *Prober) Targets(ctx context.Context, address, code string) ([]common.Address, error) {
	code, err := p.ensureCode(ctx, address, code)
	if err != nil {
		return nil, err
	}
	f, inspectErr := Inspect(code)
	if inspectErr != nil {
		return nil, inspectErr
	}
	if f.Kind == None {
		return nil, nil
	}
	if f.Kind == Target {
		return []common.Address{f.Target}, nil
	}

	probes := p.probes(address)
	found := make([]common.Address, len(probes))
	ok := make([]bool, len(probes))
	done := make(chan int, len(probes))
	for i, pr := range probes {
		i, pr := i, pr
		go func() {
			addr, probeErr := pr.run(ctx)
			if probeErr == nil {
				found[i] = addr
				ok[i] = true
			}
			done <- i
		}()
	}
	for range probes {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	var out []common.Address
	seen := map[common.Address]struct{}{}
	for i := range probes {
		if !ok[i] {
			continue
		}
		if _, dup := seen[found[i]]; dup {
			continue
		}
		seen[found[i]] = struct{}{}
		out = append(out, found[i])
	}
	return out, nil
}

func (p *Prober) ensureCode(ctx context.Context, address, code string) (string, error) {
	if code != "" {
		return code, nil
	}
	return p.prov.GetCode(ctx, address)
}

// decodeAddressWord turns a storage word or call result into an address.
// Zero and all-ones values disqualify the probe: both are common sentinels,
// never deployed targets.
func decodeAddressWord(word string) (common.Address, error) {
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(word), "0x"))
	if h == "" {
		return common.Address{}, errEmptyWord
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return common.Address{}, err
	}
	if len(raw) > common.AddressLength {
		// A 32-byte word must be zero-padded down to an address.
		for _, b := range raw[:len(raw)-common.AddressLength] {
			if b != 0 {
				return common.Address{}, errNotAnAddress
			}
		}
		raw = raw[len(raw)-common.AddressLength:]
	}
	addr := common.BytesToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, errZeroAddress
	}
	if addr == maxAddress {
		return common.Address{}, errNotAnAddress
	}
	return addr, nil
}

var maxAddress = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")

var (
	errEmptyWord    = errors.New("empty word")
	errZeroAddress  = errors.New("zero address")
	errNotAnAddress = errors.New("word does not decode to an address")
)

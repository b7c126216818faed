// Package proxy detects delegation patterns in contract bytecode and, with
// node access, resolves the implementation address behind them.
package proxy

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/tokenscope/tokenscope/internal/evm"
	"github.com/tokenscope/tokenscope/internal/sig"
)

// Kind classifies a bytecode-level proxy finding.
type Kind int

const (
	// None means no DELEGATECALL was found.
	None Kind = iota
	// Target means a literal delegate target was recovered from the code.
	Target
	// ImplementationPattern means the contract delegates and exposes an
	// implementation() getter; the target is only resolvable by calling the
	// live contract.
	ImplementationPattern
	// Delegates means a DELEGATECALL is present but neither a literal target
	// nor a known getter pattern was found.
	Delegates
)

func (k Kind) String() string {
	switch k {
	case Target:
		return "target"
	case ImplementationPattern:
		return "implementation"
	case Delegates:
		return "delegatecall"
	default:
		return "none"
	}
}

// Finding is the outcome of bytecode-level proxy inspection. Target is only
// meaningful for Kind == Target. Immutable marks EIP-1167 minimal proxies,
// whose target is burned into the code.
type Finding struct {
	Kind      Kind
	Target    common.Address
	Immutable bool
}

// implementationABI is the single-method surface used to recognize
// implementation()-pattern proxies by selector presence.
var implementationABI = []byte(`[{"type":"function","name":"implementation","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}]`)

// Inspect runs the bytecode-only proxy state machine. Outcomes in priority
// order: EIP-1167 template or DELEGATECALL+PUSH20 literal target;
// implementation()-pattern; bare delegatecall; not a proxy.
func Inspect(code string) (Finding, error) {
	norm, err := sig.NormalizeBytecode(code)
	if err != nil {
		return Finding{}, err
	}
	if raw, decErr := hex.DecodeString(norm); decErr == nil {
		if target, ok := parseMinimal(raw); ok {
			return Finding{Kind: Target, Target: target, Immutable: true}, nil
		}
	}
	ins, err := evm.Decode(norm)
	if err != nil {
		return Finding{}, err
	}
	if !evm.HasDelegateCall(ins) {
		return Finding{}, nil
	}
	for _, in := range ins {
		if in.Op != vm.PUSH20 || len(in.Arg) != 20 {
			continue
		}
		addr := common.BytesToAddress(in.Arg)
		if addr == (common.Address{}) {
			continue
		}
		return Finding{Kind: Target, Target: addr}, nil
	}
	if ok, compatErr := sig.IsCompatible(implementationABI, norm); compatErr == nil && ok {
		return Finding{Kind: ImplementationPattern}, nil
	}
	return Finding{Kind: Delegates}, nil
}

// EIP-1167 minimal proxy template, split around the embedded target address.
// The push carrying the address may be shortened when the target has leading
// zero bytes, so the push width is read from the opcode itself.
var (
	minimalPrefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d}
	minimalSuffix = []byte{0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60, 0x2b, 0x57, 0xfd, 0x5b, 0xf3}
)

func parseMinimal(code []byte) (common.Address, bool) {
	if len(code) < len(minimalPrefix)+1 {
		return common.Address{}, false
	}
	for i, b := range minimalPrefix {
		if code[i] != b {
			return common.Address{}, false
		}
	}
	push := code[len(minimalPrefix)]
	if push < byte(vm.PUSH1) || push > byte(vm.PUSH20) {
		return common.Address{}, false
	}
	addrLen := int(push-byte(vm.PUSH1)) + 1
	addrStart := len(minimalPrefix) + 1
	suffixStart := addrStart + addrLen
	if len(code) < suffixStart+len(minimalSuffix) {
		return common.Address{}, false
	}
	for i, b := range minimalSuffix {
		if code[suffixStart+i] != b {
			return common.Address{}, false
		}
	}
	var addr common.Address
	copy(addr[20-addrLen:], code[addrStart:suffixStart])
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

// Package evm decodes contract bytecode into an instruction stream and scans
// it for pushed selector literals. Decoding itself is delegated to
// go-ethereum's disassembler; this package only shapes its output for the
// classifiers and the proxy detector.
package evm

import (
	"encoding/hex"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/core/asm"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/tokenscope/tokenscope/internal/sig"
)

// Instruction is one decoded opcode with its immediate operand, if any.
type Instruction struct {
	PC  uint64
	Op  vm.OpCode
	Arg []byte
}

// Decode disassembles a bytecode hex string. Deployed contracts commonly end
// in non-code metadata that truncates mid-push; decoding stops there and the
// instructions recovered so far are returned. Only non-hex input is an
// error.
func Decode(code string) ([]Instruction, error) {
	norm, err := sig.NormalizeBytecode(code)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(norm)
	if err != nil {
		return nil, fmt.Errorf("%w: bytecode: %v", sig.ErrInvalidInput, err)
	}
	var ins []Instruction
	it := asm.NewInstructionIterator(raw)
	for it.Next() {
		var arg []byte
		if a := it.Arg(); len(a) > 0 {
			arg = append([]byte(nil), a...)
		}
		ins = append(ins, Instruction{PC: it.PC(), Op: it.Op(), Arg: arg})
	}
	// it.Error() reports a trailing truncated push; the prefix is still valid.
	return ins, nil
}

// Scan collects the operands of every PUSH4 (function selector candidates)
// and PUSH32 (event topic candidates) instruction as lowercase hex without
// the 0x prefix, deduplicated. This picks up all pushed 4/32-byte literals,
// not only dispatcher entries, which keeps matching permissive.
func Scan(code string) (mapset.Set[string], error) {
	ins, err := Decode(code)
	if err != nil {
		return nil, err
	}
	out := mapset.NewThreadUnsafeSet[string]()
	for _, in := range ins {
		switch in.Op {
		case vm.PUSH4, vm.PUSH32:
			out.Add(hex.EncodeToString(in.Arg))
		}
	}
	return out, nil
}

// HasDelegateCall reports whether the instruction stream contains a
// DELEGATECALL.
func HasDelegateCall(ins []Instruction) bool {
	for _, in := range ins {
		if in.Op == vm.DELEGATECALL {
			return true
		}
	}
	return false
}

package eth

import (
	"context"
)

// Provider defines the minimal RPC surface classification needs. Concrete
// adapters (any JSON-RPC endpoint: Alchemy/Infura/QuickNode/self-hosted)
// satisfy this interface. Implementations must support concurrent in-flight
// requests; timeout/retry policy lives here, not in the callers.
type Provider interface {
	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// GetCode returns the deployed bytecode at address as 0x-prefixed hex.
	GetCode(ctx context.Context, address string) (string, error)

	// GetStorageAt reads one storage word of address at the given slot,
	// returned as 0x-prefixed hex.
	GetStorageAt(ctx context.Context, address, slot string) (string, error)

	// Call executes a read-only message call against address with the given
	// calldata and returns the raw result as 0x-prefixed hex.
	Call(ctx context.Context, address, data string) (string, error)
}

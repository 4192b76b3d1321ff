/*

The asset transfer gateway moves tokens into and out of the vault's custody
account. The engine treats it as an external collaborator: a failed call
aborts the enclosing operation as a whole.

*/

package gateway

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Gateway is the token-transfer primitive consumed by the engine.
// Implementations must be safe against double invocation within a single
// aborted operation; the engine never re-invokes a transfer after failure,
// but a retry at the transport layer must not double-move funds.
type Gateway interface {
	// Pull moves amount of asset from the holder into the vault's custody
	// account.
	Pull(ctx context.Context, asset, from string, amount sdkmath.Int) error

	// Push moves amount of asset out of the vault's custody account to the
	// recipient.
	Push(ctx context.Context, asset, to string, amount sdkmath.Int) error

	// BalanceOf returns the holder's current balance of asset.
	BalanceOf(ctx context.Context, asset, holder string) (sdkmath.Int, error)
}

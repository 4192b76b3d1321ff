/*

The exchange venue adapter executes swaps and add/remove-liquidity operations
against the external AMM venue, returning realized amounts. Like the gateway
it is an external collaborator: a failed call aborts the enclosing operation.

*/

package venue

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// AddLiquidityResult reports what the venue actually consumed and minted.
type AddLiquidityResult struct {
	Pool     string      `json:"pool"`
	UsedA    sdkmath.Int `json:"used_a"`
	UsedB    sdkmath.Int `json:"used_b"`
	LPAmount sdkmath.Int `json:"lp_amount"`
}

// Venue is the exchange interface consumed by the engine. All minimum-out
// bounds are enforced venue-side: a call that cannot meet its bound fails
// without moving funds.
type Venue interface {
	// Quote returns the expected output for a swap at current venue prices.
	Quote(ctx context.Context, assetIn, assetOut string, amountIn sdkmath.Int, isStable bool) (sdkmath.Int, error)

	// Swap trades amountIn of assetIn for assetOut, failing if the realized
	// output would fall below minAmountOut.
	Swap(ctx context.Context, assetIn, assetOut string, amountIn, minAmountOut sdkmath.Int, isStable bool) (sdkmath.Int, error)

	// AddLiquidity deposits the pair into the venue pool, failing if either
	// consumed amount would fall below its minimum.
	AddLiquidity(ctx context.Context, assetA, assetB string, amountA, amountB, minA, minB sdkmath.Int, isStable bool) (AddLiquidityResult, error)

	// RemoveLiquidity redeems lpAmount from pool, failing if either realized
	// output would fall below its minimum. Zero minimums accept any price.
	RemoveLiquidity(ctx context.Context, pool string, lpAmount, minA, minB sdkmath.Int) (sdk.Coin, sdk.Coin, error)
}

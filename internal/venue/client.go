package venue

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/logger"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/nodeclient"
	"github.com/rs/zerolog"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidClient  = errors.New("venue client is invalid")
	ErrInvalidRequest = errors.New("venue request is invalid")
	ErrInvalidResult  = errors.New("venue result is invalid")
)

// Client implements Venue over the node's JSON-RPC AMM methods. All trades
// execute from the vault's custody account.
type Client struct {
	node         *nodeclient.Client
	vaultAccount string
	log          zerolog.Logger
}

var _ Venue = (*Client)(nil)

// NewClient creates a venue client bound to the vault's custody account.
func NewClient(node *nodeclient.Client, vaultAccount string) (*Client, error) {
	if node == nil {
		return nil, errors.Join(ErrInvalidClient, errors.New("node client cannot be nil"))
	}
	if vaultAccount == "" {
		return nil, errors.Join(ErrInvalidClient, errors.New("vault account cannot be empty"))
	}
	return &Client{
		node:         node,
		vaultAccount: vaultAccount,
		log:          logger.GetForComponent("venue_client"),
	}, nil
}

type quoteParams struct {
	AssetIn  string      `json:"asset_in"`
	AssetOut string      `json:"asset_out"`
	AmountIn sdkmath.Int `json:"amount_in"`
	IsStable bool        `json:"is_stable"`
}

type quoteResult struct {
	AmountOut sdkmath.Int `json:"amount_out"`
}

type swapParams struct {
	Trader       string      `json:"trader"`
	AssetIn      string      `json:"asset_in"`
	AssetOut     string      `json:"asset_out"`
	AmountIn     sdkmath.Int `json:"amount_in"`
	MinAmountOut sdkmath.Int `json:"min_amount_out"`
	IsStable     bool        `json:"is_stable"`
}

type swapResult struct {
	AmountOut sdkmath.Int `json:"amount_out"`
	TxHash    string      `json:"tx_hash,omitempty"`
}

type addLiquidityParams struct {
	Provider string      `json:"provider"`
	AssetA   string      `json:"asset_a"`
	AssetB   string      `json:"asset_b"`
	AmountA  sdkmath.Int `json:"amount_a"`
	AmountB  sdkmath.Int `json:"amount_b"`
	MinA     sdkmath.Int `json:"min_a"`
	MinB     sdkmath.Int `json:"min_b"`
	IsStable bool        `json:"is_stable"`
}

type removeLiquidityParams struct {
	Provider string      `json:"provider"`
	Pool     string      `json:"pool"`
	LPAmount sdkmath.Int `json:"lp_amount"`
	MinA     sdkmath.Int `json:"min_a"`
	MinB     sdkmath.Int `json:"min_b"`
}

type removeLiquidityResult struct {
	DenomA  string      `json:"denom_a"`
	AmountA sdkmath.Int `json:"amount_a"`
	DenomB  string      `json:"denom_b"`
	AmountB sdkmath.Int `json:"amount_b"`
	TxHash  string      `json:"tx_hash,omitempty"`
}

// Quote returns the expected output for a swap at current venue prices.
func (c *Client) Quote(ctx context.Context, assetIn, assetOut string, amountIn sdkmath.Int, isStable bool) (sdkmath.Int, error) {
	if err := validatePair(assetIn, assetOut, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	var res quoteResult
	err := c.node.Call(ctx, "amm_quote", quoteParams{
		AssetIn: assetIn, AssetOut: assetOut, AmountIn: amountIn, IsStable: isStable,
	}, &res)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("quote %s->%s failed: %w", assetIn, assetOut, err)
	}
	if res.AmountOut.IsNil() || res.AmountOut.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidResult, fmt.Errorf("quote %s->%s returned invalid amount", assetIn, assetOut))
	}
	return res.AmountOut, nil
}

// Swap trades amountIn of assetIn for assetOut with the venue enforcing
// minAmountOut.
func (c *Client) Swap(ctx context.Context, assetIn, assetOut string, amountIn, minAmountOut sdkmath.Int, isStable bool) (sdkmath.Int, error) {
	if err := validatePair(assetIn, assetOut, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if minAmountOut.IsNil() || minAmountOut.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidRequest, errors.New("minimum output cannot be nil or negative"))
	}
	var res swapResult
	err := c.node.Call(ctx, "amm_swap", swapParams{
		Trader: c.vaultAccount, AssetIn: assetIn, AssetOut: assetOut,
		AmountIn: amountIn, MinAmountOut: minAmountOut, IsStable: isStable,
	}, &res)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("swap %s->%s failed: %w", assetIn, assetOut, err)
	}
	if res.AmountOut.IsNil() || !res.AmountOut.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidResult, fmt.Errorf("swap %s->%s returned invalid output", assetIn, assetOut))
	}

	c.log.Info().
		Str("assetIn", assetIn).
		Str("assetOut", assetOut).
		Str("amountIn", amountIn.String()).
		Str("amountOut", res.AmountOut.String()).
		Str("txHash", res.TxHash).
		Msg("Swap executed at venue")
	return res.AmountOut, nil
}

// AddLiquidity deposits the pair into the venue pool.
func (c *Client) AddLiquidity(ctx context.Context, assetA, assetB string, amountA, amountB, minA, minB sdkmath.Int, isStable bool) (AddLiquidityResult, error) {
	if err := validatePair(assetA, assetB, amountA); err != nil {
		return AddLiquidityResult{}, err
	}
	if amountB.IsNil() || !amountB.IsPositive() {
		return AddLiquidityResult{}, errors.Join(ErrInvalidRequest, fmt.Errorf("amount of %s must be positive", assetB))
	}
	var res AddLiquidityResult
	err := c.node.Call(ctx, "amm_add_liquidity", addLiquidityParams{
		Provider: c.vaultAccount, AssetA: assetA, AssetB: assetB,
		AmountA: amountA, AmountB: amountB, MinA: minA, MinB: minB, IsStable: isStable,
	}, &res)
	if err != nil {
		return AddLiquidityResult{}, fmt.Errorf("add liquidity %s/%s failed: %w", assetA, assetB, err)
	}
	if res.Pool == "" || res.LPAmount.IsNil() || !res.LPAmount.IsPositive() {
		return AddLiquidityResult{}, errors.Join(ErrInvalidResult, fmt.Errorf("add liquidity %s/%s returned invalid result", assetA, assetB))
	}

	c.log.Info().
		Str("pool", res.Pool).
		Str("usedA", res.UsedA.String()).
		Str("usedB", res.UsedB.String()).
		Str("lpAmount", res.LPAmount.String()).
		Msg("Liquidity added at venue")
	return res, nil
}

// RemoveLiquidity redeems lpAmount from pool.
func (c *Client) RemoveLiquidity(ctx context.Context, pool string, lpAmount, minA, minB sdkmath.Int) (sdk.Coin, sdk.Coin, error) {
	if pool == "" {
		return sdk.Coin{}, sdk.Coin{}, errors.Join(ErrInvalidRequest, errors.New("pool cannot be empty"))
	}
	if lpAmount.IsNil() || !lpAmount.IsPositive() {
		return sdk.Coin{}, sdk.Coin{}, errors.Join(ErrInvalidRequest, fmt.Errorf("lp amount must be positive, got %s", lpAmount))
	}
	var res removeLiquidityResult
	err := c.node.Call(ctx, "amm_remove_liquidity", removeLiquidityParams{
		Provider: c.vaultAccount, Pool: pool, LPAmount: lpAmount, MinA: minA, MinB: minB,
	}, &res)
	if err != nil {
		return sdk.Coin{}, sdk.Coin{}, fmt.Errorf("remove liquidity from %s failed: %w", pool, err)
	}
	if res.DenomA == "" || res.DenomB == "" || res.AmountA.IsNil() || res.AmountB.IsNil() ||
		res.AmountA.IsNegative() || res.AmountB.IsNegative() {
		return sdk.Coin{}, sdk.Coin{}, errors.Join(ErrInvalidResult, fmt.Errorf("remove liquidity from %s returned invalid result", pool))
	}

	c.log.Info().
		Str("pool", pool).
		Str("lpAmount", lpAmount.String()).
		Str("outA", res.AmountA.String()+res.DenomA).
		Str("outB", res.AmountB.String()+res.DenomB).
		Msg("Liquidity removed at venue")
	return sdk.NewCoin(res.DenomA, res.AmountA), sdk.NewCoin(res.DenomB, res.AmountB), nil
}

func validatePair(assetA, assetB string, amount sdkmath.Int) error {
	if assetA == "" || assetB == "" {
		return errors.Join(ErrInvalidRequest, errors.New("asset identifiers cannot be empty"))
	}
	if assetA == assetB {
		return errors.Join(ErrInvalidRequest, fmt.Errorf("assets must differ, got %s twice", assetA))
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(ErrInvalidRequest, fmt.Errorf("amount must be positive, got %s", amount))
	}
	return nil
}

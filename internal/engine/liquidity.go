/*

Capital deployment operations: swap, add/remove liquidity and the composite
enter-LP-position path. All are agent-or-owner and blocked while emergency
mode is on.

Minimum-out bounds are computed here from the policy's default slippage and
enforced venue-side: a venue call that cannot meet its bound fails without
moving funds, and the enclosing operation aborts with no position entry.

*/

package engine

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/access"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// Swap trades amountIn of the reference asset for tokenOut at the venue.
// The minimum acceptable output is quote * (10000 - defaultSlippageBps) /
// 10000; the venue enforces the bound. Shares are untouched.
func (e *Engine) Swap(ctx context.Context, caller, tokenOut string, amountIn sdkmath.Int, isStable bool) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.AgentOrOwner); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if tokenOut == "" || tokenOut == e.referenceDenom {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: swap output denom %q", types.ErrAmountInvalid, tokenOut))
	}
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: swap input must be positive, got %s", types.ErrAmountInvalid, amountIn))
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	quote, err := e.venue.Quote(ctx, e.referenceDenom, tokenOut, amountIn, isStable)
	if err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: quote %s -> %s: %w", types.ErrVenueCall, e.referenceDenom, tokenOut, err))
		e.record(e.failedReceipt(opID, types.OpSwap, caller, wrapped))
		return sdkmath.ZeroInt(), wrapped
	}
	minOut := applyBps(quote, e.policy.DefaultSlippageBps)

	out, err := e.venue.Swap(ctx, e.referenceDenom, tokenOut, amountIn, minOut, isStable)
	if err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: swap %s%s -> %s: %w", types.ErrVenueCall, amountIn, e.referenceDenom, tokenOut, err))
		e.record(e.failedReceipt(opID, types.OpSwap, caller, wrapped))
		return sdkmath.ZeroInt(), wrapped
	}

	log.Info().
		Str("amountIn", amountIn.String()).
		Str("tokenOut", tokenOut).
		Str("realizedOut", out.String()).
		Str("minOut", minOut.String()).
		Msg("Swap completed")

	e.record(types.OperationReceipt{
		OperationID: opID,
		Type:        types.OpSwap,
		Caller:      caller,
		Coins: []sdk.Coin{
			{Denom: e.referenceDenom, Amount: amountIn},
			{Denom: tokenOut, Amount: out},
		},
		PositionIndex: -1,
		Success:       true,
		Timestamp:     e.now(),
	})
	return out, nil
}

// AddLiquidity deposits the pair into the venue pool and records the new
// position with the realized LP amount. Per-asset minimums come from the
// default slippage. A venue failure leaves no entry and no recorded
// movement.
func (e *Engine) AddLiquidity(ctx context.Context, caller, assetA, assetB string, amountA, amountB sdkmath.Int, isStable bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.AgentOrOwner); err != nil {
		return 0, err
	}

	opID := uuid.New().String()
	index, err := e.addLiquidityLocked(ctx, opID, caller, assetA, assetB, amountA, amountB, isStable, types.OpAddLiquidity)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// addLiquidityLocked is the shared add-liquidity body used by both the
// direct operation and the composite enter-LP path. Caller holds the write
// lock and has already authorized.
func (e *Engine) addLiquidityLocked(ctx context.Context, opID, caller, assetA, assetB string, amountA, amountB sdkmath.Int, isStable bool, op types.OperationType) (int, error) {
	if assetA == "" || assetB == "" || assetA == assetB {
		return 0, types.PolicyViolation(fmt.Errorf("%w: invalid pair %q/%q", types.ErrAmountInvalid, assetA, assetB))
	}
	if amountA.IsNil() || !amountA.IsPositive() || amountB.IsNil() || !amountB.IsPositive() {
		return 0, types.PolicyViolation(fmt.Errorf("%w: liquidity amounts must be positive, got %s/%s", types.ErrAmountInvalid, amountA, amountB))
	}

	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	minA := applyBps(amountA, e.policy.DefaultSlippageBps)
	minB := applyBps(amountB, e.policy.DefaultSlippageBps)

	res, err := e.venue.AddLiquidity(ctx, assetA, assetB, amountA, amountB, minA, minB, isStable)
	if err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: add liquidity %s/%s: %w", types.ErrVenueCall, assetA, assetB, err))
		e.record(e.failedReceipt(opID, op, caller, wrapped))
		return 0, wrapped
	}

	index, err := e.registry.Append(res.Pool, assetA, assetB, isStable, res.LPAmount, e.now())
	if err != nil {
		// The venue minted LP the registry refuses to record. There is no
		// unwind path that cannot itself fail, so treat it as fatal.
		panic(fmt.Sprintf("engine: venue returned unrecordable lp amount %s: %v", res.LPAmount, err))
	}

	log.Info().
		Str("pool", res.Pool).
		Str("usedA", res.UsedA.String()).
		Str("usedB", res.UsedB.String()).
		Str("lpAmount", res.LPAmount.String()).
		Int("positionIndex", index).
		Msg("Liquidity added")

	e.record(types.OperationReceipt{
		OperationID: opID,
		Type:        op,
		Caller:      caller,
		Coins: []sdk.Coin{
			{Denom: assetA, Amount: res.UsedA},
			{Denom: assetB, Amount: res.UsedB},
		},
		LPDelta:       res.LPAmount,
		PositionIndex: index,
		Success:       true,
		Timestamp:     e.now(),
	})
	return index, nil
}

// RemoveLiquidity redeems lpAmount from the position at index, accepting
// any realized amounts. The path is deliberately permissive so it stays
// usable in adverse conditions; the bound against the recorded position is
// checked before the venue is called, so the decrement afterwards cannot
// fail.
func (e *Engine) RemoveLiquidity(ctx context.Context, caller string, index int, lpAmount sdkmath.Int) (sdk.Coin, sdk.Coin, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	var none sdk.Coin
	if err := e.gate.Authorize(caller, access.AgentOrOwner); err != nil {
		return none, none, err
	}

	pos, err := e.registry.Get(index)
	if err != nil {
		return none, none, err
	}
	if lpAmount.IsNil() || !lpAmount.IsPositive() {
		return none, none, types.PolicyViolation(fmt.Errorf("%w: lp amount must be positive, got %s", types.ErrAmountInvalid, lpAmount))
	}
	if lpAmount.GT(pos.LPAmount) {
		return none, none, types.PolicyViolation(fmt.Errorf("%w: position %d holds %s, requested %s", types.ErrExceedsPosition, index, pos.LPAmount, lpAmount))
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	outA, outB, err := e.venue.RemoveLiquidity(ctx, pos.VenuePool, lpAmount, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	if err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: remove liquidity from %s: %w", types.ErrVenueCall, pos.VenuePool, err))
		e.record(e.failedReceipt(opID, types.OpRemoveLiquidity, caller, wrapped))
		return none, none, wrapped
	}

	if err := e.registry.Decrement(index, lpAmount); err != nil {
		// Bound-checked above under the same lock; failure here means the
		// registry state changed mid-operation, which cannot happen.
		panic(fmt.Sprintf("engine: position decrement failed after venue call: %v", err))
	}

	log.Info().
		Int("positionIndex", index).
		Str("lpAmount", lpAmount.String()).
		Str("outA", outA.String()).
		Str("outB", outB.String()).
		Msg("Liquidity removed")

	e.record(types.OperationReceipt{
		OperationID:   opID,
		Type:          types.OpRemoveLiquidity,
		Caller:        caller,
		Coins:         []sdk.Coin{outA, outB},
		LPDelta:       lpAmount.Neg(),
		PositionIndex: index,
		Success:       true,
		Timestamp:     e.now(),
	})
	return outA, outB, nil
}

// EnterLPPosition deploys refAmount of the reference asset into a paired
// position with tokenB: half is swapped for tokenB at venue price (no
// minimum-out bound on this internal swap), then both halves are added as
// liquidity. Requires dual-sided mode and refAmount >= 2 * MinDeposit.
//
// The composite is atomic to observers: if the add step fails, no position
// is recorded and the swap output remains in the vault's own balance,
// recoverable by a later operation.
func (e *Engine) EnterLPPosition(ctx context.Context, caller, tokenB string, refAmount sdkmath.Int, isStable bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.AgentOrOwner); err != nil {
		return 0, err
	}
	if tokenB == "" || tokenB == e.referenceDenom {
		return 0, types.PolicyViolation(fmt.Errorf("%w: pair token %q", types.ErrAmountInvalid, tokenB))
	}
	if !e.policy.PoolTypeMode.AllowsDualSided() {
		return 0, types.PolicyViolation(fmt.Errorf("%w: mode %s forbids dual-sided positions", types.ErrPoolTypeDisabled, e.policy.PoolTypeMode))
	}
	floor := e.policy.MinDeposit.MulRaw(2)
	if refAmount.IsNil() || refAmount.LT(floor) {
		return 0, types.PolicyViolation(fmt.Errorf("%w: %s < 2 * minimum deposit %s", types.ErrBelowMinimum, refAmount, e.policy.MinDeposit))
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	swapHalf := refAmount.QuoRaw(2)
	refHalf := refAmount.Sub(swapHalf)

	realizedB, err := e.venue.Swap(ctx, e.referenceDenom, tokenB, swapHalf, sdkmath.ZeroInt(), isStable)
	if err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: entry swap %s%s -> %s: %w", types.ErrVenueCall, swapHalf, e.referenceDenom, tokenB, err))
		e.record(e.failedReceipt(opID, types.OpEnterLP, caller, wrapped))
		return 0, wrapped
	}

	log.Debug().
		Str("swapHalf", swapHalf.String()).
		Str("realizedB", realizedB.String()).
		Msg("Entry swap executed, adding liquidity")

	index, err := e.addLiquidityLocked(ctx, opID, caller, e.referenceDenom, tokenB, refHalf, realizedB, isStable, types.OpEnterLP)
	if err != nil {
		// The swap output sits in the vault's balance, not a position;
		// nothing is stranded and the composite reports failure as a whole.
		log.Warn().
			Str("realizedB", realizedB.String()).
			Str("tokenB", tokenB).
			Msg("Liquidity step failed after entry swap; swap output retained in vault balance")
		return 0, err
	}
	return index, nil
}

// applyBps scales amount down by bps basis points, flooring: the slippage
// bound for a quoted output of q at s bps is q * (10000 - s) / 10000.
func applyBps(amount sdkmath.Int, bps uint32) sdkmath.Int {
	return amount.MulRaw(10000 - int64(bps)).QuoRaw(10000)
}

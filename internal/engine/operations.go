/*

Share-moving operations: deposits, withdrawals and the emergency drain.

Ordering discipline:
  - Deposits read the custodied balance before pulling funds, pull, and only
    then mint, so shares are never credited for a failed pull and the mint
    ratio never counts the incoming deposit.
  - Withdrawals burn first (checks-effects-interactions) and push after; a
    failed push restores the burned shares before the lock is released, so
    no observer ever sees the partial state.

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

// Deposit pulls amount of the reference asset from caller and mints shares
// against the custodied balance observed before the pull. Public.
func (e *Engine) Deposit(ctx context.Context, caller string, amount sdkmath.Int) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.Public); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := e.validateDepositAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	totalBefore, err := e.totalValueLocked(ctx)
	if err != nil {
		e.record(e.failedReceipt(opID, types.OpDeposit, caller, err))
		return sdkmath.ZeroInt(), err
	}

	if err := e.gateway.Pull(ctx, e.referenceDenom, caller, amount); err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: pull %s%s from %s: %w", types.ErrGatewayCall, amount, e.referenceDenom, caller, err))
		e.record(e.failedReceipt(opID, types.OpDeposit, caller, wrapped))
		return sdkmath.ZeroInt(), wrapped
	}

	minted, err := e.ledger.Mint(caller, amount, totalBefore, e.now())
	if err != nil {
		// Funds were pulled but no shares can be minted; return them so the
		// operation leaves no trace.
		if pushErr := e.gateway.Push(ctx, e.referenceDenom, caller, amount); pushErr != nil {
			log.Error().Err(pushErr).Msg("Failed to refund rejected deposit")
		}
		e.record(e.failedReceipt(opID, types.OpDeposit, caller, err))
		return sdkmath.ZeroInt(), err
	}

	log.Info().
		Str("amount", amount.String()).
		Str("minted", minted.String()).
		Msg("Deposit completed")

	e.record(types.OperationReceipt{
		OperationID:   opID,
		Type:          types.OpDeposit,
		Caller:        caller,
		Coins:         []sdk.Coin{{Denom: e.referenceDenom, Amount: amount}},
		SharesDelta:   minted,
		PositionIndex: -1,
		Success:       true,
		Timestamp:     e.now(),
	})
	return minted, nil
}

// DepositToken accepts a non-reference asset, values it through the price
// function and mints shares for that value. Public.
//
// The default price function is face value. That is only defensible for
// assets pegged to the reference denom; deployments holding anything else
// must inject a real price source through Config.Price.
func (e *Engine) DepositToken(ctx context.Context, caller string, coin sdk.Coin) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.Public); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if coin.Denom == "" {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: coin denom cannot be empty", types.ErrAmountInvalid))
	}
	if coin.Amount.IsNil() || !coin.Amount.IsPositive() {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: deposit amount must be positive, got %s", types.ErrAmountInvalid, coin.Amount))
	}
	value := e.price(coin.Denom, coin.Amount)
	if err := e.validateDepositAmount(value); err != nil {
		return sdkmath.ZeroInt(), err
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	totalBefore, err := e.totalValueLocked(ctx)
	if err != nil {
		e.record(e.failedReceipt(opID, types.OpDepositToken, caller, err))
		return sdkmath.ZeroInt(), err
	}

	if err := e.gateway.Pull(ctx, coin.Denom, caller, coin.Amount); err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: pull %s from %s: %w", types.ErrGatewayCall, coin, caller, err))
		e.record(e.failedReceipt(opID, types.OpDepositToken, caller, wrapped))
		return sdkmath.ZeroInt(), wrapped
	}

	minted, err := e.ledger.Mint(caller, value, totalBefore, e.now())
	if err != nil {
		if pushErr := e.gateway.Push(ctx, coin.Denom, caller, coin.Amount); pushErr != nil {
			log.Error().Err(pushErr).Msg("Failed to refund rejected token deposit")
		}
		e.record(e.failedReceipt(opID, types.OpDepositToken, caller, err))
		return sdkmath.ZeroInt(), err
	}

	log.Info().
		Str("coin", coin.String()).
		Str("value", value.String()).
		Str("minted", minted.String()).
		Msg("Token deposit completed")

	e.record(types.OperationReceipt{
		OperationID:   opID,
		Type:          types.OpDepositToken,
		Caller:        caller,
		Coins:         []sdk.Coin{coin},
		SharesDelta:   minted,
		PositionIndex: -1,
		Success:       true,
		Timestamp:     e.now(),
	})
	return minted, nil
}

// Withdraw burns shares held by caller and pushes the proportional payout in
// the reference asset. Public.
func (e *Engine) Withdraw(ctx context.Context, caller string, shares sdkmath.Int) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.Public); err != nil {
		return sdkmath.ZeroInt(), err
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	total, err := e.totalValueLocked(ctx)
	if err != nil {
		e.record(e.failedReceipt(opID, types.OpWithdraw, caller, err))
		return sdkmath.ZeroInt(), err
	}

	payout, err := e.ledger.Burn(caller, shares, total)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if payout.IsZero() {
		e.ledger.Restore(caller, shares)
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: %s shares redeem to a zero payout", types.ErrAmountInvalid, shares))
	}

	if err := e.gateway.Push(ctx, e.referenceDenom, caller, payout); err != nil {
		e.ledger.Restore(caller, shares)
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: push %s%s to %s: %w", types.ErrGatewayCall, payout, e.referenceDenom, caller, err))
		e.record(e.failedReceipt(opID, types.OpWithdraw, caller, wrapped))
		return sdkmath.ZeroInt(), wrapped
	}

	log.Info().
		Str("shares", shares.String()).
		Str("payout", payout.String()).
		Msg("Withdrawal completed")

	e.record(types.OperationReceipt{
		OperationID:   opID,
		Type:          types.OpWithdraw,
		Caller:        caller,
		Coins:         []sdk.Coin{{Denom: e.referenceDenom, Amount: payout}},
		SharesDelta:   shares.Neg(),
		PositionIndex: -1,
		Success:       true,
		Timestamp:     e.now(),
	})
	return payout, nil
}

// EmergencyWithdrawAll pushes the entire custodied reference-asset balance
// to the owner, bypassing the share ledger. Owner-only, and only while
// emergency mode is on: a deliberate escape hatch, not a share-conserving
// operation.
func (e *Engine) EmergencyWithdrawAll(ctx context.Context, caller string) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginMutation()
	defer e.endMutation()

	if err := e.gate.Authorize(caller, access.EmergencyOnly); err != nil {
		return sdkmath.ZeroInt(), err
	}

	opID := uuid.New().String()
	log := e.logger.With().Str("operationID", opID).Str("caller", caller).Logger()

	total, err := e.totalValueLocked(ctx)
	if err != nil {
		e.record(e.failedReceipt(opID, types.OpEmergencyDrain, caller, err))
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		log.Warn().Msg("Emergency drain requested with zero custodied balance")
		return sdkmath.ZeroInt(), nil
	}

	if err := e.gateway.Push(ctx, e.referenceDenom, e.gate.Owner(), total); err != nil {
		wrapped := types.ExternalCallFailure(fmt.Errorf("%w: drain %s%s to owner: %w", types.ErrGatewayCall, total, e.referenceDenom, err))
		e.record(e.failedReceipt(opID, types.OpEmergencyDrain, caller, wrapped))
		return sdkmath.ZeroInt(), wrapped
	}

	log.Warn().
		Str("drained", total.String()).
		Msg("Emergency drain completed")

	e.record(types.OperationReceipt{
		OperationID:   opID,
		Type:          types.OpEmergencyDrain,
		Caller:        caller,
		Coins:         []sdk.Coin{{Denom: e.referenceDenom, Amount: total}},
		PositionIndex: -1,
		Success:       true,
		Timestamp:     e.now(),
	})
	return total, nil
}

// validateDepositAmount applies the positivity and minimum-deposit policy
// checks shared by both deposit paths. Caller holds the write lock.
func (e *Engine) validateDepositAmount(value sdkmath.Int) error {
	if value.IsNil() || !value.IsPositive() {
		return types.PolicyViolation(fmt.Errorf("%w: deposit value must be positive, got %s", types.ErrAmountInvalid, value))
	}
	if value.LT(e.policy.MinDeposit) {
		return types.PolicyViolation(fmt.Errorf("%w: %s < %s", types.ErrBelowMinimum, value, e.policy.MinDeposit))
	}
	return nil
}

// failedReceipt builds the receipt for an operation aborted mid-flight.
func (e *Engine) failedReceipt(opID string, op types.OperationType, caller string, cause error) types.OperationReceipt {
	return types.OperationReceipt{
		OperationID:   opID,
		Type:          op,
		Caller:        caller,
		PositionIndex: -1,
		Success:       false,
		Message:       cause.Error(),
		Timestamp:     e.now(),
	}
}

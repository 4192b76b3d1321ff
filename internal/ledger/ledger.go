/*

The ledger owns the relationship between deposited capital and ownership
shares. It is the source of truth for "how much does address X own".

The ledger itself is a plain state object with no locking: the engine
serializes every mutating operation, so at most one mutation is in flight at
any time. Constructing a Ledger per test keeps instances fully isolated.

All share math is floor integer division and always rounds in the vault's
favor: minting floors the shares credited, redemption floors the payout, so
the sum of all claims can never exceed the custodied balance.

*/

package ledger

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// PriceFunc converts an amount of an arbitrary denom into reference-asset
// value. The engine injects it for non-reference deposits.
type PriceFunc func(denom string, amount sdkmath.Int) sdkmath.Int

// FaceValue prices every denom 1:1 against the reference asset. This mirrors
// the reference system's behavior for non-reference deposits and is almost
// certainly wrong for anything that is not a dollar-pegged stable; it is the
// default only so the behavior is explicit and replaceable.
func FaceValue(denom string, amount sdkmath.Int) sdkmath.Int {
	return amount
}

// Ledger tracks total outstanding shares and per-address positions.
type Ledger struct {
	totalShares    sdkmath.Int
	totalDeposited sdkmath.Int
	positions      map[string]*types.UserPosition
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		totalShares:    sdkmath.ZeroInt(),
		totalDeposited: sdkmath.ZeroInt(),
		positions:      make(map[string]*types.UserPosition),
	}
}

// Mint credits shares to addr for a deposit worth value reference units.
// totalValue is the custodied reference balance before the deposit is
// credited. The first depositor sets the share:value ratio 1:1; afterwards
// sharesToMint = floor(value * totalShares / totalValue).
//
// Mint performs no external calls; the engine pulls funds first and only
// then mints, so shares are never credited for a failed pull.
func (l *Ledger) Mint(addr string, value, totalValue sdkmath.Int, now time.Time) (sdkmath.Int, error) {
	if value.IsNil() || !value.IsPositive() {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: mint value must be positive, got %s", types.ErrAmountInvalid, value))
	}

	var minted sdkmath.Int
	if l.totalShares.IsZero() || totalValue.IsZero() {
		// Bootstrap: empty vault (or a vault whose balance was fully drained
		// while shares were outstanding) restarts at 1 share per unit.
		minted = value
	} else {
		minted = value.Mul(l.totalShares).Quo(totalValue)
	}
	if minted.IsZero() {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: deposit of %s would mint zero shares", types.ErrAmountInvalid, value))
	}

	pos, ok := l.positions[addr]
	if !ok {
		pos = &types.UserPosition{Address: addr, Shares: sdkmath.ZeroInt()}
		l.positions[addr] = pos
	}
	pos.Shares = pos.Shares.Add(minted)
	pos.LastDepositTime = now
	l.totalShares = l.totalShares.Add(minted)
	l.totalDeposited = l.totalDeposited.Add(value)

	l.assertConservation()
	return minted, nil
}

// Burn destroys shares held by addr and returns the proportional payout:
// floor(shares * totalValue / totalShares). State is mutated before the
// engine moves any funds (checks-effects-interactions); if the outbound
// transfer then fails the engine calls Restore.
func (l *Ledger) Burn(addr string, shares, totalValue sdkmath.Int) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: shares to burn must be positive, got %s", types.ErrAmountInvalid, shares))
	}
	pos, ok := l.positions[addr]
	if !ok || pos.Shares.LT(shares) {
		held := sdkmath.ZeroInt()
		if ok {
			held = pos.Shares
		}
		return sdkmath.ZeroInt(), types.PolicyViolation(fmt.Errorf("%w: %s holds %s, requested %s", types.ErrInsufficientShares, addr, held, shares))
	}

	payout := shares.Mul(totalValue).Quo(l.totalShares)

	pos.Shares = pos.Shares.Sub(shares)
	l.totalShares = l.totalShares.Sub(shares)

	l.assertConservation()
	return payout, nil
}

// Restore re-credits shares burned by an operation whose outbound transfer
// failed, returning the ledger to its pre-call state. Only the engine calls
// this, under the same critical section as the Burn it undoes.
func (l *Ledger) Restore(addr string, shares sdkmath.Int) {
	pos, ok := l.positions[addr]
	if !ok {
		panic(fmt.Sprintf("ledger: restore for unknown address %s", addr))
	}
	pos.Shares = pos.Shares.Add(shares)
	l.totalShares = l.totalShares.Add(shares)
	l.assertConservation()
}

// TotalShares returns the total outstanding share count.
func (l *Ledger) TotalShares() sdkmath.Int {
	return l.totalShares
}

// TotalDeposited returns the running total of value ever deposited. It is
// informational only and plays no part in payout math.
func (l *Ledger) TotalDeposited() sdkmath.Int {
	return l.totalDeposited
}

// Shares returns addr's share balance, zero for unknown addresses.
func (l *Ledger) Shares(addr string) sdkmath.Int {
	if pos, ok := l.positions[addr]; ok {
		return pos.Shares
	}
	return sdkmath.ZeroInt()
}

// Value returns addr's proportional claim on totalValue.
func (l *Ledger) Value(addr string, totalValue sdkmath.Int) sdkmath.Int {
	if l.totalShares.IsZero() {
		return sdkmath.ZeroInt()
	}
	return l.Shares(addr).Mul(totalValue).Quo(l.totalShares)
}

// HolderCount returns the number of addresses with a non-zero position.
func (l *Ledger) HolderCount() int {
	n := 0
	for _, pos := range l.positions {
		if pos.Shares.IsPositive() {
			n++
		}
	}
	return n
}

// Positions returns a copy of every user position for snapshotting.
func (l *Ledger) Positions() []types.UserPosition {
	out := make([]types.UserPosition, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// assertConservation panics if the per-address shares no longer sum to
// totalShares. Reaching it means a programming error in this package, not a
// recoverable condition.
func (l *Ledger) assertConservation() {
	sum := sdkmath.ZeroInt()
	for _, pos := range l.positions {
		if pos.Shares.IsNegative() {
			panic(fmt.Sprintf("ledger: negative share balance for %s", pos.Address))
		}
		sum = sum.Add(pos.Shares)
	}
	if !sum.Equal(l.totalShares) {
		panic(fmt.Sprintf("ledger: share conservation violated: sum %s != total %s", sum, l.totalShares))
	}
}

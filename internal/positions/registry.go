/*

The liquidity position registry owns the list of paired liquidity positions
the vault currently holds at the venue. The list is an append-only arena:
removal decrements a position's lpAmount and fully unwound entries stay in
place with a zero amount, so indices handed out by Append remain valid for
the life of the process.

Like the ledger, the registry carries no lock of its own; the engine
serializes all mutations.

*/

package positions

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// Registry is the append-only arena of liquidity positions.
type Registry struct {
	entries []types.LiquidityPosition
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Append records a new position and returns its stable index.
func (r *Registry) Append(pool, assetA, assetB string, isStable bool, lpAmount sdkmath.Int, now time.Time) (int, error) {
	if lpAmount.IsNil() || !lpAmount.IsPositive() {
		return 0, types.PolicyViolation(fmt.Errorf("%w: lp amount must be positive, got %s", types.ErrAmountInvalid, lpAmount))
	}
	r.entries = append(r.entries, types.LiquidityPosition{
		VenuePool:    pool,
		AssetA:       assetA,
		AssetB:       assetB,
		IsStablePair: isStable,
		LPAmount:     lpAmount,
		OpenedAt:     now,
	})
	return len(r.entries) - 1, nil
}

// Get returns a copy of the position at index.
func (r *Registry) Get(index int) (types.LiquidityPosition, error) {
	if index < 0 || index >= len(r.entries) {
		return types.LiquidityPosition{}, types.PolicyViolation(fmt.Errorf("%w: position index %d out of range", types.ErrAmountInvalid, index))
	}
	return r.entries[index], nil
}

// Decrement reduces the position's lpAmount by exactly lpAmount. It fails
// with ExceedsPosition when the requested amount is larger than the current
// claim; the amount can therefore never go negative.
func (r *Registry) Decrement(index int, lpAmount sdkmath.Int) error {
	if index < 0 || index >= len(r.entries) {
		return types.PolicyViolation(fmt.Errorf("%w: position index %d out of range", types.ErrAmountInvalid, index))
	}
	if lpAmount.IsNil() || !lpAmount.IsPositive() {
		return types.PolicyViolation(fmt.Errorf("%w: lp amount must be positive, got %s", types.ErrAmountInvalid, lpAmount))
	}
	entry := &r.entries[index]
	if lpAmount.GT(entry.LPAmount) {
		return types.PolicyViolation(fmt.Errorf("%w: position %d holds %s, requested %s", types.ErrExceedsPosition, index, entry.LPAmount, lpAmount))
	}

	entry.LPAmount = entry.LPAmount.Sub(lpAmount)
	if entry.LPAmount.IsNegative() {
		panic(fmt.Sprintf("positions: negative lp amount at index %d", index))
	}
	return nil
}

// Len returns the number of entries ever appended, retired ones included.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot returns a copy of all entries for concurrent readers.
func (r *Registry) Snapshot() []types.LiquidityPosition {
	out := make([]types.LiquidityPosition, len(r.entries))
	copy(out, r.entries)
	return out
}

// Open returns copies of the entries that still have a non-zero claim.
func (r *Registry) Open() []types.LiquidityPosition {
	out := make([]types.LiquidityPosition, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Retired() {
			out = append(out, e)
		}
	}
	return out
}

package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/venue"
)

// Error definitions shared by the sim venue.
var (
	ErrNoPool           = errors.New("no pool for pair")
	ErrSlippageExceeded = errors.New("output below minimum")
	ErrVenueHalted      = errors.New("venue halted by fault injection")
)

const swapFeeBps = 30 // 0.3% constant-product swap fee

// pool is one constant-product pair. Reserves live in the bank under the
// pool's own account so that vault-side balances stay honest.
type pool struct {
	id       string
	denomA   string // lexicographically smaller denom
	denomB   string
	isStable bool
	totalLP  sdkmath.Int
}

// Venue is an in-memory AMM implementing venue.Venue against a Bank.
type Venue struct {
	mu           sync.Mutex
	bank         *Bank
	vaultAccount string
	pools        map[string]*pool

	failNextSwap bool
	failNextAdd  bool
}

var _ venue.Venue = (*Venue)(nil)

// NewVenue creates an empty AMM trading against the given bank on behalf of
// the vault's custody account.
func NewVenue(bank *Bank, vaultAccount string) *Venue {
	return &Venue{
		bank:         bank,
		vaultAccount: vaultAccount,
		pools:        make(map[string]*pool),
	}
}

// SeedPool creates a pair with the given reserves. Test/sim seeding only.
func (v *Venue) SeedPool(assetA, assetB string, reserveA, reserveB sdkmath.Int, isStable bool) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	p := v.ensurePool(assetA, assetB, isStable)
	v.bank.Fund(p.id, assetA, reserveA)
	v.bank.Fund(p.id, assetB, reserveB)
	p.totalLP = reserveA.Add(reserveB)
	return p.id
}

// FailNextSwap makes the next Swap fail without moving funds.
func (v *Venue) FailNextSwap() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNextSwap = true
}

// FailNextAddLiquidity makes the next AddLiquidity fail without moving funds.
func (v *Venue) FailNextAddLiquidity() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNextAdd = true
}

// Quote returns the constant-product output for amountIn at current reserves.
func (v *Venue) Quote(ctx context.Context, assetIn, assetOut string, amountIn sdkmath.Int, isStable bool) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.lookupPool(assetIn, assetOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.swapOutput(p, assetIn, assetOut, amountIn), nil
}

// Swap trades against the pair pool, enforcing minAmountOut.
func (v *Venue) Swap(ctx context.Context, assetIn, assetOut string, amountIn, minAmountOut sdkmath.Int, isStable bool) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failNextSwap {
		v.failNextSwap = false
		return sdkmath.ZeroInt(), ErrVenueHalted
	}
	p, err := v.lookupPool(assetIn, assetOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	out := v.swapOutput(p, assetIn, assetOut, amountIn)
	if out.LT(minAmountOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: realized %s, minimum %s", ErrSlippageExceeded, out, minAmountOut)
	}

	if err := v.bank.Transfer(assetIn, v.vaultAccount, p.id, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.bank.Transfer(assetOut, p.id, v.vaultAccount, out); err != nil {
		// Undo the inbound leg so a failed swap moves nothing.
		_ = v.bank.Transfer(assetIn, p.id, v.vaultAccount, amountIn)
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}

// AddLiquidity deposits the pair, consuming amounts at the pool ratio and
// enforcing the per-asset minimums on the consumed amounts.
func (v *Venue) AddLiquidity(ctx context.Context, assetA, assetB string, amountA, amountB, minA, minB sdkmath.Int, isStable bool) (venue.AddLiquidityResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failNextAdd {
		v.failNextAdd = false
		return venue.AddLiquidityResult{}, ErrVenueHalted
	}
	p := v.ensurePool(assetA, assetB, isStable)

	reserveA := v.bank.Balance(p.id, assetA)
	reserveB := v.bank.Balance(p.id, assetB)

	usedA, usedB := amountA, amountB
	var lp sdkmath.Int
	if p.totalLP.IsZero() || reserveA.IsZero() || reserveB.IsZero() {
		lp = usedA.Add(usedB)
	} else {
		// Consume at the pool ratio, keeping whichever side binds.
		wantB := amountA.Mul(reserveB).Quo(reserveA)
		if wantB.GT(amountB) {
			usedA = amountB.Mul(reserveA).Quo(reserveB)
		} else {
			usedB = wantB
		}
		if !usedA.IsPositive() || !usedB.IsPositive() {
			return venue.AddLiquidityResult{}, fmt.Errorf("%w: amounts too small for pool ratio", ErrSlippageExceeded)
		}
		lp = p.totalLP.Mul(usedA).Quo(reserveA)
	}

	if usedA.LT(minA) || usedB.LT(minB) {
		return venue.AddLiquidityResult{}, fmt.Errorf("%w: consumed %s/%s below minimums %s/%s", ErrSlippageExceeded, usedA, usedB, minA, minB)
	}
	if err := v.bank.Transfer(assetA, v.vaultAccount, p.id, usedA); err != nil {
		return venue.AddLiquidityResult{}, err
	}
	if err := v.bank.Transfer(assetB, v.vaultAccount, p.id, usedB); err != nil {
		_ = v.bank.Transfer(assetA, p.id, v.vaultAccount, usedA)
		return venue.AddLiquidityResult{}, err
	}
	p.totalLP = p.totalLP.Add(lp)

	return venue.AddLiquidityResult{Pool: p.id, UsedA: usedA, UsedB: usedB, LPAmount: lp}, nil
}

// RemoveLiquidity redeems lpAmount for both assets at the current ratio.
func (v *Venue) RemoveLiquidity(ctx context.Context, poolID string, lpAmount, minA, minB sdkmath.Int) (sdk.Coin, sdk.Coin, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[poolID]
	if !ok {
		return sdk.Coin{}, sdk.Coin{}, fmt.Errorf("%w: %s", ErrNoPool, poolID)
	}
	if lpAmount.GT(p.totalLP) {
		return sdk.Coin{}, sdk.Coin{}, fmt.Errorf("pool %s has %s lp, requested %s", poolID, p.totalLP, lpAmount)
	}

	reserveA := v.bank.Balance(p.id, p.denomA)
	reserveB := v.bank.Balance(p.id, p.denomB)
	outA := reserveA.Mul(lpAmount).Quo(p.totalLP)
	outB := reserveB.Mul(lpAmount).Quo(p.totalLP)
	if outA.LT(minA) || outB.LT(minB) {
		return sdk.Coin{}, sdk.Coin{}, fmt.Errorf("%w: realized %s/%s below minimums %s/%s", ErrSlippageExceeded, outA, outB, minA, minB)
	}

	if outA.IsPositive() {
		if err := v.bank.Transfer(p.denomA, p.id, v.vaultAccount, outA); err != nil {
			return sdk.Coin{}, sdk.Coin{}, err
		}
	}
	if outB.IsPositive() {
		if err := v.bank.Transfer(p.denomB, p.id, v.vaultAccount, outB); err != nil {
			if outA.IsPositive() {
				_ = v.bank.Transfer(p.denomA, v.vaultAccount, p.id, outA)
			}
			return sdk.Coin{}, sdk.Coin{}, err
		}
	}
	p.totalLP = p.totalLP.Sub(lpAmount)

	return sdk.NewCoin(p.denomA, outA), sdk.NewCoin(p.denomB, outB), nil
}

// swapOutput computes the fee-adjusted constant-product output. Caller holds
// the lock.
func (v *Venue) swapOutput(p *pool, assetIn, assetOut string, amountIn sdkmath.Int) sdkmath.Int {
	reserveIn := v.bank.Balance(p.id, assetIn)
	reserveOut := v.bank.Balance(p.id, assetOut)
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt()
	}
	inAfterFee := amountIn.MulRaw(10000 - swapFeeBps)
	num := reserveOut.Mul(inAfterFee)
	den := reserveIn.MulRaw(10000).Add(inAfterFee)
	return num.Quo(den)
}

func (v *Venue) lookupPool(assetA, assetB string) (*pool, error) {
	id := poolKey(assetA, assetB)
	p, ok := v.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoPool, assetA, assetB)
	}
	return p, nil
}

func (v *Venue) ensurePool(assetA, assetB string, isStable bool) *pool {
	id := poolKey(assetA, assetB)
	if p, ok := v.pools[id]; ok {
		return p
	}
	denoms := []string{assetA, assetB}
	sort.Strings(denoms)
	p := &pool{
		id:       id,
		denomA:   denoms[0],
		denomB:   denoms[1],
		isStable: isStable,
		totalLP:  sdkmath.ZeroInt(),
	}
	v.pools[id] = p
	return p
}

func poolKey(assetA, assetB string) string {
	denoms := []string{assetA, assetB}
	sort.Strings(denoms)
	return fmt.Sprintf("amm/pool/%s-%s", denoms[0], denoms[1])
}

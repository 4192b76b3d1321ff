package sim

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vaultAcct = "vault-custody"
	alice     = "alice"
	ref       = "uusdc"
	pair      = "uatom"
)

func TestBankPullPush(t *testing.T) {
	ctx := context.Background()
	b := NewBank(vaultAcct)
	b.Fund(alice, ref, sdkmath.NewInt(1000))

	require.NoError(t, b.Pull(ctx, ref, alice, sdkmath.NewInt(400)))

	got, err := b.BalanceOf(ctx, ref, vaultAcct)
	require.NoError(t, err)
	assert.Equal(t, "400", got.String())
	assert.Equal(t, "600", b.Balance(alice, ref).String())

	require.NoError(t, b.Push(ctx, ref, alice, sdkmath.NewInt(100)))
	assert.Equal(t, "700", b.Balance(alice, ref).String())
	assert.Equal(t, "300", b.Balance(vaultAcct, ref).String())
}

func TestBankRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	b := NewBank(vaultAcct)
	b.Fund(alice, ref, sdkmath.NewInt(100))

	err := b.Pull(ctx, ref, alice, sdkmath.NewInt(101))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "100", b.Balance(alice, ref).String())

	err = b.Push(ctx, ref, alice, sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBankFaultInjectionResets(t *testing.T) {
	ctx := context.Background()
	b := NewBank(vaultAcct)
	b.Fund(alice, ref, sdkmath.NewInt(1000))

	b.FailNextPull()
	err := b.Pull(ctx, ref, alice, sdkmath.NewInt(100))
	require.ErrorIs(t, err, ErrTransferDisabled)
	assert.Equal(t, "1000", b.Balance(alice, ref).String())

	// The flag resets after one failure.
	require.NoError(t, b.Pull(ctx, ref, alice, sdkmath.NewInt(100)))
}

func newSeededVenue(t *testing.T) (*Bank, *Venue, string) {
	t.Helper()
	b := NewBank(vaultAcct)
	v := NewVenue(b, vaultAcct)
	poolID := v.SeedPool(ref, pair, sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_000_000), false)
	b.Fund(vaultAcct, ref, sdkmath.NewInt(100_000))
	b.Fund(vaultAcct, pair, sdkmath.NewInt(100_000))
	return b, v, poolID
}

func TestVenueSwapMatchesQuote(t *testing.T) {
	ctx := context.Background()
	b, v, _ := newSeededVenue(t)

	quote, err := v.Quote(ctx, ref, pair, sdkmath.NewInt(10_000), false)
	require.NoError(t, err)
	assert.True(t, quote.IsPositive())
	// Fee and price impact keep the output strictly under the input at a
	// balanced pool.
	assert.True(t, quote.LT(sdkmath.NewInt(10_000)))

	out, err := v.Swap(ctx, ref, pair, sdkmath.NewInt(10_000), quote, false)
	require.NoError(t, err)
	assert.Equal(t, quote.String(), out.String())
	assert.Equal(t, "90000", b.Balance(vaultAcct, ref).String())
	assert.Equal(t, sdkmath.NewInt(100_000).Add(out).String(), b.Balance(vaultAcct, pair).String())
}

func TestVenueSwapEnforcesMinOut(t *testing.T) {
	ctx := context.Background()
	b, v, _ := newSeededVenue(t)

	quote, err := v.Quote(ctx, ref, pair, sdkmath.NewInt(10_000), false)
	require.NoError(t, err)

	_, err = v.Swap(ctx, ref, pair, sdkmath.NewInt(10_000), quote.AddRaw(1), false)
	require.ErrorIs(t, err, ErrSlippageExceeded)

	// A refused swap moves nothing.
	assert.Equal(t, "100000", b.Balance(vaultAcct, ref).String())
	assert.Equal(t, "100000", b.Balance(vaultAcct, pair).String())
}

func TestVenueSwapUnknownPair(t *testing.T) {
	ctx := context.Background()
	_, v, _ := newSeededVenue(t)

	_, err := v.Swap(ctx, ref, "unknown", sdkmath.NewInt(100), sdkmath.ZeroInt(), false)
	require.ErrorIs(t, err, ErrNoPool)
}

func TestVenueAddRemoveLiquidityRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, v, poolID := newSeededVenue(t)

	res, err := v.AddLiquidity(ctx, ref, pair, sdkmath.NewInt(10_000), sdkmath.NewInt(10_000), sdkmath.ZeroInt(), sdkmath.ZeroInt(), false)
	require.NoError(t, err)
	assert.Equal(t, poolID, res.Pool)
	assert.True(t, res.LPAmount.IsPositive())
	// Balanced pool at a 1:1 ratio consumes both sides fully.
	assert.Equal(t, "10000", res.UsedA.String())
	assert.Equal(t, "10000", res.UsedB.String())
	assert.Equal(t, "90000", b.Balance(vaultAcct, ref).String())

	outA, outB, err := v.RemoveLiquidity(ctx, poolID, res.LPAmount, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, outA.Amount.IsPositive())
	assert.True(t, outB.Amount.IsPositive())
	// Flooring means we can get back at most what we put in.
	assert.True(t, outA.Amount.LTE(sdkmath.NewInt(10_000)))
	assert.True(t, outB.Amount.LTE(sdkmath.NewInt(10_000)))
}

func TestVenueAddLiquidityConsumesAtPoolRatio(t *testing.T) {
	ctx := context.Background()
	_, v, _ := newSeededVenue(t)

	// Offer twice as much of the pair asset as the 1:1 pool wants; the
	// excess must stay unconsumed.
	res, err := v.AddLiquidity(ctx, ref, pair, sdkmath.NewInt(10_000), sdkmath.NewInt(20_000), sdkmath.ZeroInt(), sdkmath.ZeroInt(), false)
	require.NoError(t, err)
	assert.Equal(t, "10000", res.UsedA.String())
	assert.Equal(t, "10000", res.UsedB.String())
}

func TestVenueAddLiquidityMinimumBound(t *testing.T) {
	ctx := context.Background()
	b, v, _ := newSeededVenue(t)

	// Demand that the full pair amount be consumed even though the pool
	// ratio will only take half of it.
	_, err := v.AddLiquidity(ctx, ref, pair, sdkmath.NewInt(10_000), sdkmath.NewInt(20_000), sdkmath.NewInt(10_000), sdkmath.NewInt(20_000), false)
	require.ErrorIs(t, err, ErrSlippageExceeded)
	assert.Equal(t, "100000", b.Balance(vaultAcct, ref).String())
	assert.Equal(t, "100000", b.Balance(vaultAcct, pair).String())
}

func TestVenueFaultInjection(t *testing.T) {
	ctx := context.Background()
	b, v, _ := newSeededVenue(t)

	v.FailNextSwap()
	_, err := v.Swap(ctx, ref, pair, sdkmath.NewInt(100), sdkmath.ZeroInt(), false)
	require.ErrorIs(t, err, ErrVenueHalted)
	assert.Equal(t, "100000", b.Balance(vaultAcct, ref).String())

	v.FailNextAddLiquidity()
	_, err = v.AddLiquidity(ctx, ref, pair, sdkmath.NewInt(100), sdkmath.NewInt(100), sdkmath.ZeroInt(), sdkmath.ZeroInt(), false)
	require.ErrorIs(t, err, ErrVenueHalted)

	// Both flags reset after one failure.
	_, err = v.Swap(ctx, ref, pair, sdkmath.NewInt(100), sdkmath.ZeroInt(), false)
	require.NoError(t, err)
}

package ledger

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMintBootstrap(t *testing.T) {
	l := New()

	// First depositor sets the ratio 1:1 regardless of the reported total.
	minted, err := l.Mint("alice", sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)
	assert.Equal(t, "1000000", minted.String())
	assert.Equal(t, "1000000", l.TotalShares().String())
	assert.Equal(t, "1000000", l.Shares("alice").String())
}

func TestMintProportional(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)

	// Vault has appreciated: 1,000,000 shares now back 2,000,000 units, so a
	// 1,000,000 deposit mints 500,000 shares.
	minted, err := l.Mint("bob", sdkmath.NewInt(1_000_000), sdkmath.NewInt(2_000_000), testTime)
	require.NoError(t, err)
	assert.Equal(t, "500000", minted.String())
	assert.Equal(t, "1500000", l.TotalShares().String())
}

func TestMintFloorsInVaultFavor(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(1000), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)

	// 7 * 1000 / 3000 = 2.33..., floored to 2.
	minted, err := l.Mint("bob", sdkmath.NewInt(7), sdkmath.NewInt(3000), testTime)
	require.NoError(t, err)
	assert.Equal(t, "2", minted.String())
}

func TestMintZeroSharesRejected(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(10), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)

	// 1 * 10 / 1000 floors to zero shares: the deposit must be rejected
	// rather than silently swallowed.
	_, err = l.Mint("bob", sdkmath.NewInt(1), sdkmath.NewInt(1000), testTime)
	require.ErrorIs(t, err, types.ErrPolicyViolation)
	require.ErrorIs(t, err, types.ErrAmountInvalid)
	assert.Equal(t, "10", l.TotalShares().String())
}

func TestMintRejectsNonPositive(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.ZeroInt(), sdkmath.ZeroInt(), testTime)
	require.ErrorIs(t, err, types.ErrAmountInvalid)

	_, err = l.Mint("alice", sdkmath.NewInt(-5), sdkmath.ZeroInt(), testTime)
	require.ErrorIs(t, err, types.ErrAmountInvalid)
}

func TestBurnProportionalPayout(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)

	// Vault appreciated to 1,500,000: burning half the shares pays 750,000.
	payout, err := l.Burn("alice", sdkmath.NewInt(500_000), sdkmath.NewInt(1_500_000))
	require.NoError(t, err)
	assert.Equal(t, "750000", payout.String())
	assert.Equal(t, "500000", l.TotalShares().String())
	assert.Equal(t, "500000", l.Shares("alice").String())
}

func TestBurnInsufficientShares(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(100), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)

	_, err = l.Burn("alice", sdkmath.NewInt(101), sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrPolicyViolation)
	require.ErrorIs(t, err, types.ErrInsufficientShares)

	_, err = l.Burn("stranger", sdkmath.NewInt(1), sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrInsufficientShares)

	assert.Equal(t, "100", l.TotalShares().String())
}

func TestRestoreUndoesBurn(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(100), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)

	_, err = l.Burn("alice", sdkmath.NewInt(40), sdkmath.NewInt(100))
	require.NoError(t, err)

	l.Restore("alice", sdkmath.NewInt(40))
	assert.Equal(t, "100", l.Shares("alice").String())
	assert.Equal(t, "100", l.TotalShares().String())
}

func TestValueAndHolderCount(t *testing.T) {
	l := New()

	assert.Equal(t, "0", l.Value("alice", sdkmath.NewInt(1000)).String())

	_, err := l.Mint("alice", sdkmath.NewInt(600), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)
	_, err = l.Mint("bob", sdkmath.NewInt(400), sdkmath.NewInt(600), testTime)
	require.NoError(t, err)

	total := sdkmath.NewInt(2000)
	assert.Equal(t, "1200", l.Value("alice", total).String())
	assert.Equal(t, "800", l.Value("bob", total).String())
	assert.Equal(t, 2, l.HolderCount())

	// Bob exits entirely; the position stays but stops counting.
	_, err = l.Burn("bob", sdkmath.NewInt(400), total)
	require.NoError(t, err)
	assert.Equal(t, 1, l.HolderCount())
}

func TestShareConservationAcrossSequence(t *testing.T) {
	l := New()

	_, err := l.Mint("alice", sdkmath.NewInt(1_000_000), sdkmath.ZeroInt(), testTime)
	require.NoError(t, err)
	_, err = l.Mint("bob", sdkmath.NewInt(2_000_000), sdkmath.NewInt(1_000_000), testTime)
	require.NoError(t, err)
	_, err = l.Burn("alice", sdkmath.NewInt(300_000), sdkmath.NewInt(3_000_000))
	require.NoError(t, err)
	_, err = l.Mint("carol", sdkmath.NewInt(500_000), sdkmath.NewInt(2_700_000), testTime)
	require.NoError(t, err)

	sum := sdkmath.ZeroInt()
	for _, pos := range l.Positions() {
		sum = sum.Add(pos.Shares)
	}
	assert.Equal(t, l.TotalShares().String(), sum.String())
}

package positions

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAppendReturnsStableIndices(t *testing.T) {
	r := New()

	first, err := r.Append("pool/1", "uusdc", "uatom", false, sdkmath.NewInt(100), testTime)
	require.NoError(t, err)
	second, err := r.Append("pool/2", "uusdc", "uosmo", true, sdkmath.NewInt(200), testTime)
	require.NoError(t, err)

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(first)
	require.NoError(t, err)
	assert.Equal(t, "pool/1", got.VenuePool)
	assert.Equal(t, "100", got.LPAmount.String())
}

func TestAppendRejectsNonPositive(t *testing.T) {
	r := New()

	_, err := r.Append("pool/1", "uusdc", "uatom", false, sdkmath.ZeroInt(), testTime)
	require.ErrorIs(t, err, types.ErrAmountInvalid)
	assert.Equal(t, 0, r.Len())
}

func TestDecrementBoundEnforced(t *testing.T) {
	r := New()

	idx, err := r.Append("pool/1", "uusdc", "uatom", false, sdkmath.NewInt(100), testTime)
	require.NoError(t, err)

	err = r.Decrement(idx, sdkmath.NewInt(101))
	require.ErrorIs(t, err, types.ErrPolicyViolation)
	require.ErrorIs(t, err, types.ErrExceedsPosition)

	// The failed decrement left the amount untouched.
	got, err := r.Get(idx)
	require.NoError(t, err)
	assert.Equal(t, "100", got.LPAmount.String())

	require.NoError(t, r.Decrement(idx, sdkmath.NewInt(100)))
	got, err = r.Get(idx)
	require.NoError(t, err)
	assert.True(t, got.Retired())

	// A retired entry holds zero, so any further decrement exceeds it.
	err = r.Decrement(idx, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrExceedsPosition)
}

func TestRetiredEntriesKeepIndices(t *testing.T) {
	r := New()

	first, err := r.Append("pool/1", "uusdc", "uatom", false, sdkmath.NewInt(100), testTime)
	require.NoError(t, err)
	second, err := r.Append("pool/2", "uusdc", "uosmo", false, sdkmath.NewInt(200), testTime)
	require.NoError(t, err)

	require.NoError(t, r.Decrement(first, sdkmath.NewInt(100)))

	// Retirement never moves later entries.
	got, err := r.Get(second)
	require.NoError(t, err)
	assert.Equal(t, "pool/2", got.VenuePool)

	assert.Equal(t, 2, r.Len())
	open := r.Open()
	require.Len(t, open, 1)
	assert.Equal(t, "pool/2", open[0].VenuePool)
}

func TestIndexOutOfRange(t *testing.T) {
	r := New()

	_, err := r.Get(0)
	require.ErrorIs(t, err, types.ErrAmountInvalid)

	err = r.Decrement(-1, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrAmountInvalid)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()

	idx, err := r.Append("pool/1", "uusdc", "uatom", false, sdkmath.NewInt(100), testTime)
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	snap[0].LPAmount = sdkmath.NewInt(999)

	got, err := r.Get(idx)
	require.NoError(t, err)
	assert.Equal(t, "100", got.LPAmount.String())
}

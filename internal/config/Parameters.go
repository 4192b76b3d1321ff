/*

This file contains the default vault policy.

These values are used if no active policy is found in the database during
initialization. All of them can be changed at runtime by the owner through
the engine's policy setters.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// DefaultVaultPolicy provides a baseline policy for a freshly deployed vault.
var DefaultVaultPolicy = types.VaultPolicy{
	PerformanceFeeBps: 1000, // 10% performance fee.
	// Recorded on the vault and persisted with every policy version; not yet
	// applied to any flow.

	MinDeposit: sdkmath.NewInt(1_000_000), // 1 unit of a 6-decimal reference asset.
	// Dust deposits cost more in bookkeeping than they contribute; they also
	// open the door to share-rounding games.

	DefaultSlippageBps: 100, // Allow up to 1% slippage on agent swaps.
	// The venue enforces the resulting minimum-output bound. The owner can
	// raise this up to types.SlippageCeilingBps, never beyond.

	PoolTypeMode: types.PoolTypeBoth,
}

/*

Vault policy parameters. All of these are owner-controlled and take effect
immediately and atomically when changed through the engine.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// PoolTypeMode controls which kinds of liquidity deployment the agent may use.
type PoolTypeMode string

const (
	PoolTypeSingleSided PoolTypeMode = "SINGLE_SIDED"
	PoolTypeDualSided   PoolTypeMode = "DUAL_SIDED"
	PoolTypeBoth        PoolTypeMode = "BOTH"
)

// SlippageCeilingBps is the hard upper bound for the default slippage
// parameter; setters reject anything above it.
const SlippageCeilingBps = 500

// AllowsDualSided reports whether paired (two-asset) liquidity positions
// may be opened under this mode.
func (m PoolTypeMode) AllowsDualSided() bool {
	return m == PoolTypeDualSided || m == PoolTypeBoth
}

// AllowsSingleSided reports whether single-asset deployment is permitted.
func (m PoolTypeMode) AllowsSingleSided() bool {
	return m == PoolTypeSingleSided || m == PoolTypeBoth
}

// Valid reports whether the mode is one of the three recognized values.
func (m PoolTypeMode) Valid() bool {
	switch m {
	case PoolTypeSingleSided, PoolTypeDualSided, PoolTypeBoth:
		return true
	}
	return false
}

// VaultPolicy holds the mutable policy knobs of the vault.
type VaultPolicy struct {
	PerformanceFeeBps  uint32       `json:"performance_fee_bps"`
	MinDeposit         sdkmath.Int  `json:"min_deposit"`
	DefaultSlippageBps uint32       `json:"default_slippage_bps"`
	PoolTypeMode       PoolTypeMode `json:"pool_type_mode"`
}

/*

This file contains the types for vault positions: per-user share holdings and
the externally-held paired liquidity positions.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// UserPosition is one address's claim on the vault. It is created on first
// deposit and never explicitly destroyed; zero shares is the terminal state.
type UserPosition struct {
	Address         string      `json:"address"`
	Shares          sdkmath.Int `json:"shares"`
	LastDepositTime time.Time   `json:"last_deposit_time"`
}

// LiquidityPosition is the vault's claim on one paired pool at the venue.
// Entries are appended by add-liquidity operations and decremented by
// remove-liquidity operations; they are never physically removed, so indices
// stay stable for the lifetime of the process.
type LiquidityPosition struct {
	VenuePool    string      `json:"venue_pool"`
	AssetA       string      `json:"asset_a"`
	AssetB       string      `json:"asset_b"`
	IsStablePair bool        `json:"is_stable_pair"`
	LPAmount     sdkmath.Int `json:"lp_amount"`
	OpenedAt     time.Time   `json:"opened_at"`
}

// Retired reports whether the position has been fully unwound.
func (p LiquidityPosition) Retired() bool {
	return p.LPAmount.IsZero()
}

/*

Operation receipts and vault snapshots. Receipts are the audit trail of every
mutating operation; snapshots capture the ledger totals for the dashboard.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// OperationType identifies one of the engine's mutating operations.
type OperationType string

const (
	OpDeposit         OperationType = "DEPOSIT"
	OpDepositToken    OperationType = "DEPOSIT_TOKEN"
	OpWithdraw        OperationType = "WITHDRAW"
	OpSwap            OperationType = "SWAP"
	OpAddLiquidity    OperationType = "ADD_LIQUIDITY"
	OpRemoveLiquidity OperationType = "REMOVE_LIQUIDITY"
	OpEnterLP         OperationType = "ENTER_LP_POSITION"
	OpEmergencyDrain  OperationType = "EMERGENCY_DRAIN"
)

// OperationReceipt records the outcome of a single mutating operation.
type OperationReceipt struct {
	ReceiptID     int64         `json:"receipt_id,omitempty"` // Auto-incremented by DB
	OperationID   string        `json:"operation_id"`         // UUID for tracing logs across the operation
	Type          OperationType `json:"type"`
	Caller        string        `json:"caller"`
	Coins         []sdk.Coin    `json:"coins,omitempty"`          // Coins moved in/out by the operation
	SharesDelta   sdkmath.Int   `json:"shares_delta,omitempty"`   // Positive for mint, negative for burn
	LPDelta       sdkmath.Int   `json:"lp_delta,omitempty"`       // LP amount added/removed
	PositionIndex int           `json:"position_index,omitempty"` // -1 when no position involved
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// VaultSnapshot captures the ledger totals at a point in time.
type VaultSnapshot struct {
	SnapshotID       int64               `json:"snapshot_id,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
	TotalShares      sdkmath.Int         `json:"total_shares"`
	TotalDeposited   sdkmath.Int         `json:"total_deposited"`
	ReferenceBalance sdkmath.Int         `json:"reference_balance"`
	HolderCount      int                 `json:"holder_count"`
	OpenPositions    []LiquidityPosition `json:"open_positions"`
	EmergencyMode    bool                `json:"emergency_mode"`
}

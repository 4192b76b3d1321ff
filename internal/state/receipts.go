package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog/log"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// Recorder adapts the global receipt store to the engine's Recorder
// interface.
type Recorder struct{}

// RecordReceipt persists the receipt through SaveOperationReceipt.
func (Recorder) RecordReceipt(receipt types.OperationReceipt) error {
	_, err := SaveOperationReceipt(receipt)
	return err
}

// SaveOperationReceipt saves an operation receipt to the database.
func SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var coinsJSON []byte
	if len(receipt.Coins) > 0 {
		var err error
		coinsJSON, err = json.Marshal(receipt.Coins)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal coins: %w", err)
		}
	}

	query := `
		INSERT INTO operation_receipts (
			operation_id, operation_type, caller,
			coins, shares_delta, lp_delta, position_index,
			success, message, operation_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.OperationID, string(receipt.Type), receipt.Caller,
		nullableJSON(coinsJSON), nullableInt(receipt.SharesDelta), nullableInt(receipt.LPDelta), receipt.PositionIndex,
		receipt.Success, receipt.Message, receipt.Timestamp,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("operation_id", receipt.OperationID).
		Str("type", string(receipt.Type)).
		Bool("success", receipt.Success).
		Msg("Operation receipt saved to database")

	return receiptID, nil
}

// GetRecentReceipts returns the most recent operation receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT receipt_id, operation_id, operation_type, caller,
		       coins, shares_delta, lp_delta, position_index,
		       success, message, operation_timestamp
		FROM operation_receipts
		ORDER BY operation_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var (
			receipt     types.OperationReceipt
			opType      string
			coinsJSON   []byte
			sharesDelta sql.NullString
			lpDelta     sql.NullString
			message     sql.NullString
		)
		err := rows.Scan(
			&receipt.ReceiptID, &receipt.OperationID, &opType, &receipt.Caller,
			&coinsJSON, &sharesDelta, &lpDelta, &receipt.PositionIndex,
			&receipt.Success, &message, &receipt.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}
		receipt.Type = types.OperationType(opType)
		receipt.Message = message.String
		if len(coinsJSON) > 0 {
			var coins []sdk.Coin
			if err := json.Unmarshal(coinsJSON, &coins); err != nil {
				return nil, fmt.Errorf("failed to unmarshal coins for receipt %d: %w", receipt.ReceiptID, err)
			}
			receipt.Coins = coins
		}
		receipt.SharesDelta, err = parseNullableInt(sharesDelta)
		if err != nil {
			return nil, fmt.Errorf("invalid shares_delta for receipt %d: %w", receipt.ReceiptID, err)
		}
		receipt.LPDelta, err = parseNullableInt(lpDelta)
		if err != nil {
			return nil, fmt.Errorf("invalid lp_delta for receipt %d: %w", receipt.ReceiptID, err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation receipts: %w", err)
	}

	return receipts, nil
}

// nullableInt renders an sdkmath.Int as a NUMERIC parameter, mapping the
// nil (unset) value to SQL NULL.
func nullableInt(i sdkmath.Int) any {
	if i.IsNil() {
		return nil
	}
	return i.String()
}

// nullableJSON maps an empty JSON payload to SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// parseNullableInt converts a scanned NUMERIC column back to sdkmath.Int,
// mapping NULL to the nil value.
func parseNullableInt(s sql.NullString) (sdkmath.Int, error) {
	if !s.Valid {
		return sdkmath.Int{}, nil
	}
	v, ok := sdkmath.NewIntFromString(s.String)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("cannot parse %q as integer", s.String)
	}
	return v, nil
}

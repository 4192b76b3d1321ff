package state

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// SaveVaultSnapshot saves a vault snapshot to the database.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	positionsJSON, err := json.Marshal(snapshot.OpenPositions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal open_positions: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (
			snapshot_timestamp, total_shares, total_deposited,
			reference_balance, holder_count, open_positions, emergency_mode
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Timestamp, snapshot.TotalShares.String(), snapshot.TotalDeposited.String(),
		snapshot.ReferenceBalance.String(), snapshot.HolderCount, positionsJSON, snapshot.EmergencyMode,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("total_shares", snapshot.TotalShares.String()).
		Str("reference_balance", snapshot.ReferenceBalance.String()).
		Int("holder_count", snapshot.HolderCount).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the most recent vault snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, total_shares, total_deposited,
		       reference_balance, holder_count, open_positions, emergency_mode
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.VaultSnapshot
	for rows.Next() {
		var (
			snapshot       types.VaultSnapshot
			totalShares    string
			totalDeposited string
			refBalance     string
			positionsJSON  []byte
		)
		err := rows.Scan(
			&snapshot.SnapshotID, &snapshot.Timestamp, &totalShares, &totalDeposited,
			&refBalance, &snapshot.HolderCount, &positionsJSON, &snapshot.EmergencyMode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault snapshot: %w", err)
		}
		if snapshot.TotalShares, err = parseStoredInt(totalShares, "total_shares"); err != nil {
			return nil, err
		}
		if snapshot.TotalDeposited, err = parseStoredInt(totalDeposited, "total_deposited"); err != nil {
			return nil, err
		}
		if snapshot.ReferenceBalance, err = parseStoredInt(refBalance, "reference_balance"); err != nil {
			return nil, err
		}
		if len(positionsJSON) > 0 {
			if err := json.Unmarshal(positionsJSON, &snapshot.OpenPositions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal open_positions for snapshot %d: %w", snapshot.SnapshotID, err)
			}
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault snapshots: %w", err)
	}

	return snapshots, nil
}

func parseStoredInt(s, column string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("stored %s %q is not a valid integer", column, s)
	}
	return v, nil
}

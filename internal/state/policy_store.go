package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
)

// SaveVaultPolicy saves a new version of the vault policy.
func SaveVaultPolicy(policy types.VaultPolicy, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE vault_policies SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active policy for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO vault_policies (
			version, config_name, is_active, activated_at, created_at,
			performance_fee_bps, min_deposit, default_slippage_bps, pool_type_mode
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING policy_id;
	`

	var policyID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		policy.PerformanceFeeBps, policy.MinDeposit.String(), policy.DefaultSlippageBps, string(policy.PoolTypeMode),
	).Scan(&policyID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault policy: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vault policy transaction: %w", err)
	}

	log.Info().
		Int64("policy_id", policyID).
		Str("config_name", configName).
		Int("version", version).
		Bool("active", makeActive).
		Msg("Vault policy saved to database")

	return policyID, nil
}

// LoadActiveVaultPolicy loads the currently active policy for configName.
// Returns sql.ErrNoRows when no active policy exists yet.
func LoadActiveVaultPolicy(configName string) (types.VaultPolicy, int, error) {
	if DB == nil {
		return types.VaultPolicy{}, 0, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT version, performance_fee_bps, min_deposit, default_slippage_bps, pool_type_mode
		FROM vault_policies
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;
	`

	var (
		version    int
		feeBps     int
		minDeposit string
		slipBps    int
		mode       string
	)
	err := DB.QueryRow(query, configName).Scan(&version, &feeBps, &minDeposit, &slipBps, &mode)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.VaultPolicy{}, 0, err
		}
		return types.VaultPolicy{}, 0, fmt.Errorf("failed to load active vault policy for %s: %w", configName, err)
	}

	min, ok := sdkmath.NewIntFromString(minDeposit)
	if !ok {
		return types.VaultPolicy{}, 0, fmt.Errorf("stored min_deposit %q is not a valid integer", minDeposit)
	}

	policy := types.VaultPolicy{
		PerformanceFeeBps:  uint32(feeBps),
		MinDeposit:         min,
		DefaultSlippageBps: uint32(slipBps),
		PoolTypeMode:       types.PoolTypeMode(mode),
	}
	if !policy.PoolTypeMode.Valid() {
		return types.VaultPolicy{}, 0, fmt.Errorf("stored pool_type_mode %q is not recognized", mode)
	}

	log.Info().
		Str("config_name", configName).
		Int("version", version).
		Msg("Loaded active vault policy from database")

	return policy, version, nil
}

package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Owner is the address that controls policy, the agent assignment and the
	// emergency circuit breaker.
	Owner string
	// Agent is the address authorized to redeploy pooled capital.
	Agent string

	// ReferenceDenom is the primary denomination asset of the vault.
	ReferenceDenom string
	// VaultAccount is the custody account the gateway moves funds through.
	VaultAccount string

	// Mode selects the adapter set: "live" (JSON-RPC node) or "sim" (in-memory).
	Mode string

	// WebPort is the port for the HTTP dashboard/API.
	WebPort string

	// SnapshotIntervalMinutes is how often the ledger totals are snapshotted to the DB.
	SnapshotIntervalMinutes uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Owner, err = getEnv("VAULT_OWNER")
	if err != nil {
		return err
	}

	Agent, err = getEnv("VAULT_AGENT")
	if err != nil {
		return err
	}

	ReferenceDenom, err = getEnv("REFERENCE_DENOM")
	if err != nil {
		return err
	}

	VaultAccount, err = getEnv("VAULT_ACCOUNT")
	if err != nil {
		return err
	}

	Mode, err = getEnv("VAULT_MODE")
	if err != nil {
		return err
	}

	SnapshotIntervalMinutes, err = getEnvAsUint64("SNAPSHOT_INTERVAL_MINUTES")
	if err != nil {
		return err
	}

	WebPort = os.Getenv("WEB_PORT")
	if WebPort == "" {
		WebPort = "8080"
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Owner", Owner).
		Str("Agent", Agent).
		Str("ReferenceDenom", ReferenceDenom).
		Str("Mode", Mode).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/config"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/engine"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/gateway"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/logger"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/nodeclient"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/sim"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/state"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/utils"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/venue"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/web"
)

const (
	POLICY_CONFIG_NAME    = "default_vault_policy"
	POLICY_CONFIG_VERSION = 1
)

// main is the entry point for the vault daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Vault daemon starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Vault Policy
	policy, version, err := state.LoadActiveVaultPolicy(POLICY_CONFIG_NAME)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to load active vault policy")
		}
		log.Warn().Msg("No active vault policy found, saving and using defaults.")
		policy = config.DefaultVaultPolicy
		version = POLICY_CONFIG_VERSION
		if _, err := state.SaveVaultPolicy(policy, POLICY_CONFIG_NAME, POLICY_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default vault policy.")
		}
	}
	log.Info().Int("version", version).Msg("Vault policy loaded successfully.")

	// --- 2. Adapter Initialization (with Safety Switch) ---
	var (
		gw  gateway.Gateway
		ven venue.Venue
	)
	switch config.Mode {
	case "live":
		log.Warn().Msg("Initializing vault in LIVE mode. Real transfers will be executed.")
		node, err := nodeclient.New(config.NodeRPC)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize node client")
		}
		liveGateway, err := gateway.NewClient(node, config.VaultAccount)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize gateway client")
		}
		liveVenue, err := venue.NewClient(node, config.VaultAccount)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize venue client")
		}
		gw = liveGateway
		ven = liveVenue
	case "sim":
		log.Info().Msg("Initializing vault in SIM mode. All transfers are in-memory.")
		bank := sim.NewBank(config.VaultAccount)
		simVenue := sim.NewVenue(bank, config.VaultAccount)
		seedSimVenue(bank, simVenue)
		gw = bank
		ven = simVenue
	default:
		log.Fatal().Str("mode", config.Mode).Msg("VAULT_MODE must be 'live' or 'sim'. Halting to prevent accidental execution.")
	}

	// --- 3. Create Engine Instance with Dependency Injection ---
	eng, err := engine.New(engine.Config{
		Owner:          config.Owner,
		Agent:          config.Agent,
		ReferenceDenom: config.ReferenceDenom,
		VaultAccount:   config.VaultAccount,
		Gateway:        gw,
		Venue:          ven,
		Policy:         policy,
		Recorder:       state.Recorder{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault engine")
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(eng, config.WebPort)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Snapshot Loop with Graceful Shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	runSnapshotLoop(ctx, eng, time.Duration(config.SnapshotIntervalMinutes)*time.Minute)
	log.Info().Msg("Vault daemon stopped.")
}

// runSnapshotLoop periodically captures the ledger totals to the database
// until the context is cancelled.
func runSnapshotLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("Starting snapshot loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Take the first snapshot immediately
	captureSnapshot(ctx, eng)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Snapshot loop stopped due to context cancellation")
			return
		case <-ticker.C:
			captureSnapshot(ctx, eng)
		}
	}
}

func captureSnapshot(ctx context.Context, eng *engine.Engine) {
	snapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	snapshot, err := eng.Snapshot(snapCtx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to capture vault snapshot")
		return
	}
	if _, err := state.SaveVaultSnapshot(snapshot); err != nil {
		log.Error().Err(err).Msg("Failed to persist vault snapshot")
	}
}

// seedSimVenue funds the sim bank and seeds a pair pool so the engine has
// something to trade against. Seed sizes come from the environment in
// display units.
func seedSimVenue(bank *sim.Bank, simVenue *sim.Venue) {
	pairDenom := os.Getenv("SIM_PAIR_DENOM")
	if pairDenom == "" {
		pairDenom = "uatom"
	}
	reserve, err := utils.Float64ToSDKInt(mustAtof(os.Getenv("SIM_POOL_RESERVE"), 1_000_000), utils.ReferencePrecision)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid SIM_POOL_RESERVE")
	}

	poolID := simVenue.SeedPool(config.ReferenceDenom, pairDenom, reserve, reserve, false)
	log.Info().
		Str("pool", poolID).
		Str("reserve", reserve.String()).
		Msg("Seeded sim venue pool")

	// Depositors need balances to pull from; fund the configured sim
	// accounts so deposits work out of the box.
	for _, holder := range []string{config.Owner, config.Agent} {
		if holder != "" {
			bank.Fund(holder, config.ReferenceDenom, reserve)
		}
	}
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func mustAtof(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

/*

The engine is the vault façade: it owns the ledger, the position registry,
the access gate and the policy, and exposes the full operation surface.

Every mutating operation runs under a single write lock held to completion,
external calls included, so an external observer sees one operation at a time
exactly as the reference environment executes them. Read accessors share a
read lock and always see a consistent snapshot.

Reentrancy is structurally impossible because the gateway and venue adapters
hold no reference back to the engine; an internal guard still asserts it and
panics on violation, since a reentrant mutation is a programming error, not
a recoverable condition.

*/

package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/access"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/gateway"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/ledger"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/logger"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/positions"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/types"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/venue"
)

// Recorder persists operation receipts. Recording is best effort: a failed
// write is logged and never propagated into the operation result.
type Recorder interface {
	RecordReceipt(receipt types.OperationReceipt) error
}

// Engine is the vault façade with all its dependencies.
type Engine struct {
	mu   sync.RWMutex
	inOp atomic.Bool

	logger zerolog.Logger

	ledger   *ledger.Ledger
	registry *positions.Registry
	gate     *access.Gate
	gateway  gateway.Gateway
	venue    venue.Venue

	policy         types.VaultPolicy
	referenceDenom string
	vaultAccount   string
	price          ledger.PriceFunc
	recorder       Recorder
	now            func() time.Time
}

// Config holds the configuration for creating a new Engine instance.
type Config struct {
	Owner          string
	Agent          string
	ReferenceDenom string
	VaultAccount   string
	Gateway        gateway.Gateway
	Venue          venue.Venue
	Policy         types.VaultPolicy

	// Price values non-reference deposits; defaults to ledger.FaceValue.
	Price ledger.PriceFunc
	// Recorder receives operation receipts; nil disables recording.
	Recorder Recorder
	// Now is the clock; defaults to time.Now. Tests inject a fixed clock.
	Now func() time.Time
}

// New creates a new Engine instance with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	gate, err := access.New(cfg.Owner, cfg.Agent)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:         logger.GetForComponent("vault_engine"),
		ledger:         ledger.New(),
		registry:       positions.New(),
		gate:           gate,
		gateway:        cfg.Gateway,
		venue:          cfg.Venue,
		policy:         cfg.Policy,
		referenceDenom: cfg.ReferenceDenom,
		vaultAccount:   cfg.VaultAccount,
		price:          cfg.Price,
		recorder:       cfg.Recorder,
		now:            cfg.Now,
	}
	if e.price == nil {
		e.price = ledger.FaceValue
	}
	if e.now == nil {
		e.now = time.Now
	}

	e.logger.Info().
		Str("owner", cfg.Owner).
		Str("agent", cfg.Agent).
		Str("referenceDenom", cfg.ReferenceDenom).
		Str("vaultAccount", cfg.VaultAccount).
		Msg("Vault engine created successfully")

	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Owner == "" {
		return fmt.Errorf("owner address cannot be empty")
	}
	if cfg.ReferenceDenom == "" {
		return fmt.Errorf("reference denom cannot be empty")
	}
	if cfg.VaultAccount == "" {
		return fmt.Errorf("vault account cannot be empty")
	}
	if cfg.Gateway == nil {
		return fmt.Errorf("gateway cannot be nil")
	}
	if cfg.Venue == nil {
		return fmt.Errorf("venue cannot be nil")
	}
	if cfg.Policy.MinDeposit.IsNil() || cfg.Policy.MinDeposit.IsNegative() {
		return fmt.Errorf("minimum deposit must be non-negative")
	}
	if cfg.Policy.DefaultSlippageBps > types.SlippageCeilingBps {
		return fmt.Errorf("default slippage %d bps exceeds ceiling %d bps", cfg.Policy.DefaultSlippageBps, types.SlippageCeilingBps)
	}
	if !cfg.Policy.PoolTypeMode.Valid() {
		return fmt.Errorf("invalid pool type mode %q", cfg.Policy.PoolTypeMode)
	}
	return nil
}

// beginMutation marks a mutating operation in flight. The caller must hold
// the write lock; a second in-flight mutation means reentrant invocation,
// which is a fatal programming contract violation.
func (e *Engine) beginMutation() {
	if !e.inOp.CompareAndSwap(false, true) {
		panic("engine: reentrant mutating operation detected")
	}
}

func (e *Engine) endMutation() {
	e.inOp.Store(false)
}

// totalValueLocked queries the custodied reference-asset balance. Caller
// holds at least the read lock. Open liquidity positions are intentionally
// not marked to market.
func (e *Engine) totalValueLocked(ctx context.Context) (sdkmath.Int, error) {
	bal, err := e.gateway.BalanceOf(ctx, e.referenceDenom, e.vaultAccount)
	if err != nil {
		return sdkmath.ZeroInt(), types.ExternalCallFailure(fmt.Errorf("%w: balance query: %w", types.ErrGatewayCall, err))
	}
	return bal, nil
}

// TotalValue returns the vault's custodied reference-asset balance.
func (e *Engine) TotalValue(ctx context.Context) (sdkmath.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalValueLocked(ctx)
}

// UserShares returns addr's share balance.
func (e *Engine) UserShares(addr string) sdkmath.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Shares(addr)
}

// UserValue returns addr's proportional claim on the current custodied
// balance.
func (e *Engine) UserValue(ctx context.Context, addr string) (sdkmath.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total, err := e.totalValueLocked(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return e.ledger.Value(addr, total), nil
}

// TotalShares returns the total outstanding share count.
func (e *Engine) TotalShares() sdkmath.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.TotalShares()
}

// Positions returns a copy of every liquidity position ever opened.
func (e *Engine) Positions() []types.LiquidityPosition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Snapshot()
}

// Policy returns the current policy.
func (e *Engine) Policy() types.VaultPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Owner returns the owner address.
func (e *Engine) Owner() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gate.Owner()
}

// Agent returns the current agent address.
func (e *Engine) Agent() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gate.Agent()
}

// EmergencyMode reports whether the circuit breaker is on.
func (e *Engine) EmergencyMode() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gate.EmergencyMode()
}

// Snapshot captures the ledger totals and open positions at a point in time.
func (e *Engine) Snapshot(ctx context.Context) (types.VaultSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bal, err := e.totalValueLocked(ctx)
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	return types.VaultSnapshot{
		Timestamp:        e.now(),
		TotalShares:      e.ledger.TotalShares(),
		TotalDeposited:   e.ledger.TotalDeposited(),
		ReferenceBalance: bal,
		HolderCount:      e.ledger.HolderCount(),
		OpenPositions:    e.registry.Open(),
		EmergencyMode:    e.gate.EmergencyMode(),
	}, nil
}

// SetAgent reassigns the agent identity. Owner-only; effective immediately
// for subsequent calls.
func (e *Engine) SetAgent(caller, agent string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.Authorize(caller, access.OwnerOnly); err != nil {
		return err
	}
	e.gate.SetAgent(agent)
	e.logger.Info().Str("caller", caller).Str("agent", agent).Msg("Agent reassigned")
	return nil
}

// SetSlippage updates the default slippage tolerance. Owner-only; values
// above the hard ceiling are rejected.
func (e *Engine) SetSlippage(caller string, bps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.Authorize(caller, access.OwnerOnly); err != nil {
		return err
	}
	if bps > types.SlippageCeilingBps {
		return types.PolicyViolation(fmt.Errorf("%w: %d bps > %d bps", types.ErrSlippageCeiling, bps, types.SlippageCeilingBps))
	}
	e.policy.DefaultSlippageBps = bps
	e.logger.Info().Str("caller", caller).Uint32("slippageBps", bps).Msg("Default slippage updated")
	return nil
}

// SetPoolTypeMode updates which liquidity deployment kinds the agent may
// use. Owner-only.
func (e *Engine) SetPoolTypeMode(caller string, mode types.PoolTypeMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.Authorize(caller, access.OwnerOnly); err != nil {
		return err
	}
	if !mode.Valid() {
		return types.PolicyViolation(fmt.Errorf("%w: unknown pool type mode %q", types.ErrAmountInvalid, mode))
	}
	e.policy.PoolTypeMode = mode
	e.logger.Info().Str("caller", caller).Str("mode", string(mode)).Msg("Pool type mode updated")
	return nil
}

// SetMinDeposit updates the minimum deposit. Owner-only.
func (e *Engine) SetMinDeposit(caller string, min sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.Authorize(caller, access.OwnerOnly); err != nil {
		return err
	}
	if min.IsNil() || min.IsNegative() {
		return types.PolicyViolation(fmt.Errorf("%w: minimum deposit must be non-negative, got %s", types.ErrAmountInvalid, min))
	}
	e.policy.MinDeposit = min
	e.logger.Info().Str("caller", caller).Str("minDeposit", min.String()).Msg("Minimum deposit updated")
	return nil
}

// SetPerformanceFee updates the performance fee. Owner-only. The fee is a
// policy knob consumed by reporting; the engine itself never deducts it.
func (e *Engine) SetPerformanceFee(caller string, bps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.Authorize(caller, access.OwnerOnly); err != nil {
		return err
	}
	if bps > 10000 {
		return types.PolicyViolation(fmt.Errorf("%w: performance fee %d bps exceeds 10000", types.ErrAmountInvalid, bps))
	}
	e.policy.PerformanceFeeBps = bps
	e.logger.Info().Str("caller", caller).Uint32("performanceFeeBps", bps).Msg("Performance fee updated")
	return nil
}

// SetEmergencyMode toggles the manual circuit breaker. Owner-only, allowed
// in any mode.
func (e *Engine) SetEmergencyMode(caller string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gate.Authorize(caller, access.OwnerOnly); err != nil {
		return err
	}
	e.gate.SetEmergencyMode(on)
	e.logger.Warn().Str("caller", caller).Bool("emergencyMode", on).Msg("Emergency mode toggled")
	return nil
}

// record persists a receipt through the configured recorder. Failures are
// logged and swallowed so bookkeeping can never fail an operation.
func (e *Engine) record(receipt types.OperationReceipt) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordReceipt(receipt); err != nil {
		e.logger.Error().Err(err).
			Str("operationID", receipt.OperationID).
			Str("type", string(receipt.Type)).
			Msg("Failed to record operation receipt")
	}
}

/*

In-memory implementations of the gateway and venue for sim mode and tests.
They model the external collaborators honestly enough to exercise every
engine path: balances actually move, minimum-output bounds are actually
enforced, failures leave balances untouched.

*/

package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/gateway"
)

// Error definitions shared by the sim bank.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferDisabled  = errors.New("transfer disabled by fault injection")
)

// Bank is an in-memory multi-asset balance table that implements
// gateway.Gateway for the vault's custody account.
type Bank struct {
	mu           sync.Mutex
	vaultAccount string
	balances     map[string]map[string]sdkmath.Int // holder -> asset -> amount

	// Fault injection for tests: when set, the next matching call fails
	// without moving funds and the flag resets.
	failNextPull bool
	failNextPush bool
}

var _ gateway.Gateway = (*Bank)(nil)

// NewBank creates a bank whose custody account is vaultAccount.
func NewBank(vaultAccount string) *Bank {
	return &Bank{
		vaultAccount: vaultAccount,
		balances:     make(map[string]map[string]sdkmath.Int),
	}
}

// Fund credits amount of asset to holder. Test/sim seeding only.
func (b *Bank) Fund(holder, asset string, amount sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(holder, asset, amount)
}

// FailNextPull makes the next Pull fail without moving funds.
func (b *Bank) FailNextPull() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextPull = true
}

// FailNextPush makes the next Push fail without moving funds.
func (b *Bank) FailNextPush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextPush = true
}

// Pull moves amount of asset from the holder into the custody account.
func (b *Bank) Pull(ctx context.Context, asset, from string, amount sdkmath.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNextPull {
		b.failNextPull = false
		return ErrTransferDisabled
	}
	return b.move(asset, from, b.vaultAccount, amount)
}

// Push moves amount of asset out of the custody account to the recipient.
func (b *Bank) Push(ctx context.Context, asset, to string, amount sdkmath.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNextPush {
		b.failNextPush = false
		return ErrTransferDisabled
	}
	return b.move(asset, b.vaultAccount, to, amount)
}

// BalanceOf returns the holder's balance of asset.
func (b *Bank) BalanceOf(ctx context.Context, asset, holder string) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(holder, asset), nil
}

// Transfer moves amount of asset between two arbitrary holders. The sim
// venue uses it to settle pool legs.
func (b *Bank) Transfer(asset, from, to string, amount sdkmath.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, from, to, amount)
}

// Balance returns the holder's balance of asset.
func (b *Bank) Balance(holder, asset string) sdkmath.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(holder, asset)
}

// move transfers between two holders. Caller holds the lock.
func (b *Bank) move(asset, from, to string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}
	have := b.balance(from, asset)
	if have.LT(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, from, have, asset, amount)
	}
	b.balances[from][asset] = have.Sub(amount)
	b.credit(to, asset, amount)
	return nil
}

func (b *Bank) balance(holder, asset string) sdkmath.Int {
	if amounts, ok := b.balances[holder]; ok {
		if amt, ok := amounts[asset]; ok {
			return amt
		}
	}
	return sdkmath.ZeroInt()
}

func (b *Bank) credit(holder, asset string, amount sdkmath.Int) {
	if _, ok := b.balances[holder]; !ok {
		b.balances[holder] = make(map[string]sdkmath.Int)
	}
	b.balances[holder][asset] = b.balance(holder, asset).Add(amount)
}

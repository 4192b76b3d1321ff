package gateway

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/logger"
	"github.com/benjaminsmithx65-commits/techne-sub001/internal/nodeclient"
	"github.com/rs/zerolog"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidClient   = errors.New("gateway client is invalid")
	ErrInvalidTransfer = errors.New("transfer request is invalid")
	ErrInvalidBalance  = errors.New("balance data is invalid")
)

// Client implements Gateway over the node's JSON-RPC custody methods.
type Client struct {
	node         *nodeclient.Client
	vaultAccount string
	log          zerolog.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a gateway client bound to the vault's custody account.
func NewClient(node *nodeclient.Client, vaultAccount string) (*Client, error) {
	if node == nil {
		return nil, errors.Join(ErrInvalidClient, errors.New("node client cannot be nil"))
	}
	if vaultAccount == "" {
		return nil, errors.Join(ErrInvalidClient, errors.New("vault account cannot be empty"))
	}
	return &Client{
		node:         node,
		vaultAccount: vaultAccount,
		log:          logger.GetForComponent("gateway_client"),
	}, nil
}

type transferParams struct {
	Asset  string      `json:"asset"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount sdkmath.Int `json:"amount"`
	// Idempotency key: the node refuses to apply the same transfer twice,
	// so a transport-level retry within one aborted operation is safe.
	Nonce string `json:"nonce,omitempty"`
}

type transferResult struct {
	Applied bool   `json:"applied"`
	TxHash  string `json:"tx_hash,omitempty"`
}

type balanceParams struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
}

type balanceResult struct {
	Amount sdkmath.Int `json:"amount"`
}

// Pull moves amount of asset from the holder into the vault's custody account.
func (c *Client) Pull(ctx context.Context, asset, from string, amount sdkmath.Int) error {
	if err := validateTransfer(asset, from, amount); err != nil {
		return err
	}
	var res transferResult
	err := c.node.Call(ctx, "custody_transfer", transferParams{
		Asset:  asset,
		From:   from,
		To:     c.vaultAccount,
		Amount: amount,
	}, &res)
	if err != nil {
		return fmt.Errorf("pull of %s %s from %s failed: %w", amount, asset, from, err)
	}
	if !res.Applied {
		return errors.Join(ErrInvalidTransfer, fmt.Errorf("pull of %s %s from %s was not applied", amount, asset, from))
	}

	c.log.Debug().
		Str("asset", asset).
		Str("from", from).
		Str("amount", amount.String()).
		Str("txHash", res.TxHash).
		Msg("Pulled funds into custody")
	return nil
}

// Push moves amount of asset out of the vault's custody account.
func (c *Client) Push(ctx context.Context, asset, to string, amount sdkmath.Int) error {
	if err := validateTransfer(asset, to, amount); err != nil {
		return err
	}
	var res transferResult
	err := c.node.Call(ctx, "custody_transfer", transferParams{
		Asset:  asset,
		From:   c.vaultAccount,
		To:     to,
		Amount: amount,
	}, &res)
	if err != nil {
		return fmt.Errorf("push of %s %s to %s failed: %w", amount, asset, to, err)
	}
	if !res.Applied {
		return errors.Join(ErrInvalidTransfer, fmt.Errorf("push of %s %s to %s was not applied", amount, asset, to))
	}

	c.log.Debug().
		Str("asset", asset).
		Str("to", to).
		Str("amount", amount.String()).
		Str("txHash", res.TxHash).
		Msg("Pushed funds out of custody")
	return nil
}

// BalanceOf returns the holder's current balance of asset.
func (c *Client) BalanceOf(ctx context.Context, asset, holder string) (sdkmath.Int, error) {
	if asset == "" || holder == "" {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidBalance, errors.New("asset and holder cannot be empty"))
	}
	var res balanceResult
	if err := c.node.Call(ctx, "custody_balance", balanceParams{Asset: asset, Holder: holder}, &res); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("balance query for %s/%s failed: %w", holder, asset, err)
	}
	if res.Amount.IsNil() || res.Amount.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidBalance, fmt.Errorf("node returned invalid balance for %s/%s", holder, asset))
	}
	return res.Amount, nil
}

func validateTransfer(asset, counterparty string, amount sdkmath.Int) error {
	if asset == "" {
		return errors.Join(ErrInvalidTransfer, errors.New("asset cannot be empty"))
	}
	if counterparty == "" {
		return errors.Join(ErrInvalidTransfer, errors.New("counterparty cannot be empty"))
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(ErrInvalidTransfer, fmt.Errorf("amount must be positive, got %s", amount))
	}
	return nil
}

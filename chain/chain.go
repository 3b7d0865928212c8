// Package chain defines the unified Chain Gateway contract (C1) that the
// trade state machine and deposit watcher consume. A ChainDriver is a
// capability set implemented once per chain family; Gateway dispatches to
// the right driver by Chain and never leaks chain-specific types across the
// boundary.
//
// Contract guarantees, shared by every driver implementation:
//   - All methods are idempotent (safe to retry on Transient errors).
//   - All errors are classified with escrowerr.Kind.
//   - Context cancellation is respected.
//   - Drivers are safe for concurrent use; callers still serialize sends
//     through a signer lock (see Gateway) to avoid nonce races.
package chain

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/escrowerr"
)

// Chain identifies a blockchain family/network the gateway can address.
type Chain string

// Token identifies a fungible asset the gateway moves through vault
// contracts. Tokens are scoped per Chain: USDT on BSC and USDT on Tron are
// distinct (Token, Chain) pairs with distinct decimals and vault addresses.
type Token string

const (
	BSC     Chain = "BSC"
	ETH     Chain = "ETH"
	Polygon Chain = "POLYGON"
	Tron    Chain = "TRON"
)

const (
	USDT Token = "USDT"
	USDC Token = "USDC"
)

// TokenChainKey is the composite key the decimals table and registry index
// on.
type TokenChainKey struct {
	Token Token
	Chain Chain
}

// Transfer is a single ERC-20-shaped (or TVM-equivalent) Transfer event
// observed on chain, normalized across EVM and Tron.
type Transfer struct {
	From         string
	To           string
	ValueDecimal decimal.Decimal
	ValueBase    *big.Int
	TxHash       string
	LogIndex     uint
	BlockNumber  uint64
}

// FeeSettings mirrors the vault contract's fee-related view functions.
type FeeSettings struct {
	FeeWallet             string
	FeePercentBasisPoints uint32
	AccumulatedBase       *big.Int
}

// ReleaseResult is returned by ReleaseFunds and RefundFunds.
type ReleaseResult struct {
	TransactionHash string
}

// Driver is the capability set a chain family implements. EVMDriver and
// TronDriver are the two concrete variants; Gateway dispatches to one of
// them by Chain.
type Driver interface {
	// ReleaseFunds invokes the vault's release(to, amount) as the owner
	// wallet. When baseUnitsOverride is non-nil it is used verbatim,
	// eliminating floating-point drift for partial-deposit releases;
	// otherwise amountHuman is converted using the decimals table.
	//
	// Errors: escrowerr.Transient on network/nonce races (safe to
	// retry); escrowerr.Reverted on owner mismatch or insufficient
	// balance (never retried).
	ReleaseFunds(ctx context.Context, vault, to string, amountHuman decimal.Decimal, baseUnitsOverride *big.Int) (*ReleaseResult, error)

	// RefundFunds invokes the vault's refund(to, amount) as the owner
	// wallet. Same error semantics as ReleaseFunds.
	RefundFunds(ctx context.Context, vault, to string, amountHuman decimal.Decimal, baseUnitsOverride *big.Int) (*ReleaseResult, error)

	// WithdrawToken invokes the vault's withdrawToken(erc20, to) owner
	// sweep.
	WithdrawToken(ctx context.Context, vault, erc20, to string) (*ReleaseResult, error)

	// GetTokenBalance returns the vault's current balance of the given
	// ERC20-shaped token, rendered as a human decimal.
	GetTokenBalance(ctx context.Context, erc20, address string) (decimal.Decimal, error)

	// GetTokenTransfersViaRPC scans Transfer events to the given vault
	// address from fromBlock to the chain tip, inclusive.
	GetTokenTransfersViaRPC(ctx context.Context, erc20, to string, fromBlock uint64) ([]Transfer, error)

	// GetLatestBlockNumber returns the chain's current tip height.
	GetLatestBlockNumber(ctx context.Context) (uint64, error)

	// GetFeeSettings reads the vault's owner/fee view functions.
	GetFeeSettings(ctx context.Context, vault string) (*FeeSettings, error)
}

// DecimalsTable maps a (token, chain) pair to its base-unit exponent. The
// gateway refuses to operate on a pair absent from the table rather than
// silently defaulting to 18 and mispricing a chain whose token uses a
// different exponent.
type DecimalsTable map[TokenChainKey]uint8

// Decimals looks up the exponent for (token, chain), returning
// escrowerr.Internal if the pair is unknown. An unknown pair is a
// configuration bug, not a user error, so it is Internal rather than
// Validation.
func (t DecimalsTable) Decimals(token Token, chain Chain) (uint8, error) {
	d, ok := t[TokenChainKey{Token: token, Chain: chain}]
	if !ok {
		return 0, escrowerr.Internalf(ErrUnknownDecimals, "no decimals configured for %s on %s", token, chain)
	}
	return d, nil
}

// ErrUnknownDecimals is the sentinel wrapped by Decimals lookups that miss.
var ErrUnknownDecimals = unknownDecimalsErr{}

type unknownDecimalsErr struct{}

func (unknownDecimalsErr) Error() string { return "unknown (token, chain) decimals pair" }

// ToBaseUnits converts a human decimal amount to base units using the
// table's exponent for (token, chain).
func (t DecimalsTable) ToBaseUnits(token Token, chain Chain, amount decimal.Decimal) (*big.Int, error) {
	dec, err := t.Decimals(token, chain)
	if err != nil {
		return nil, err
	}
	scaled := amount.Shift(int32(dec))
	return scaled.BigInt(), nil
}

// ToHuman converts base units back to a human decimal using the table's
// exponent for (token, chain).
func (t DecimalsTable) ToHuman(token Token, chain Chain, base *big.Int) (decimal.Decimal, error) {
	dec, err := t.Decimals(token, chain)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(base, -int32(dec)), nil
}

// Gateway dispatches Chain Gateway operations to the Driver registered for
// the requested Chain, and serializes every send through a per-chain
// signer lock so the shared hot wallet never races itself on nonce
// assignment (spec §5: "the operator hot wallet is shared across all EVM
// releases").
type Gateway struct {
	drivers  map[Chain]Driver
	decimals DecimalsTable
	locks    map[Chain]*signerLock
}

// NewGateway constructs a Gateway over the given per-chain drivers and
// decimals table.
func NewGateway(drivers map[Chain]Driver, decimals DecimalsTable) *Gateway {
	locks := make(map[Chain]*signerLock, len(drivers))
	for c := range drivers {
		locks[c] = newSignerLock()
	}
	return &Gateway{drivers: drivers, decimals: decimals, locks: locks}
}

func (g *Gateway) driver(chain Chain) (Driver, error) {
	d, ok := g.drivers[chain]
	if !ok {
		return nil, escrowerr.Internalf(nil, "no chain driver registered for %s", chain)
	}
	return d, nil
}

// Decimals exposes the gateway's decimals table to callers that need to
// convert amounts without performing a chain call (e.g. tradefsm's deposit
// accounting and its list of supported chain/coin pairs).
func (g *Gateway) Decimals() DecimalsTable { return g.decimals }

// ReleaseFunds serializes the release through the chain's signer lock and
// dispatches to the registered driver.
func (g *Gateway) ReleaseFunds(ctx context.Context, chain Chain, vault, to string, amountHuman decimal.Decimal, baseUnitsOverride *big.Int) (*ReleaseResult, error) {
	d, err := g.driver(chain)
	if err != nil {
		return nil, err
	}
	lock := g.locks[chain]
	lock.Lock()
	defer lock.Unlock()
	return d.ReleaseFunds(ctx, vault, to, amountHuman, baseUnitsOverride)
}

// RefundFunds serializes the refund through the chain's signer lock and
// dispatches to the registered driver.
func (g *Gateway) RefundFunds(ctx context.Context, chain Chain, vault, to string, amountHuman decimal.Decimal, baseUnitsOverride *big.Int) (*ReleaseResult, error) {
	d, err := g.driver(chain)
	if err != nil {
		return nil, err
	}
	lock := g.locks[chain]
	lock.Lock()
	defer lock.Unlock()
	return d.RefundFunds(ctx, vault, to, amountHuman, baseUnitsOverride)
}

// WithdrawToken dispatches an owner sweep to the registered driver.
func (g *Gateway) WithdrawToken(ctx context.Context, chain Chain, vault, erc20, to string) (*ReleaseResult, error) {
	d, err := g.driver(chain)
	if err != nil {
		return nil, err
	}
	lock := g.locks[chain]
	lock.Lock()
	defer lock.Unlock()
	return d.WithdrawToken(ctx, vault, erc20, to)
}

// GetTokenBalance dispatches a balance read to the registered driver. Reads
// do not take the signer lock.
func (g *Gateway) GetTokenBalance(ctx context.Context, chain Chain, erc20, address string) (decimal.Decimal, error) {
	d, err := g.driver(chain)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.GetTokenBalance(ctx, erc20, address)
}

// GetTokenTransfersViaRPC dispatches a Transfer-event scan to the
// registered driver.
func (g *Gateway) GetTokenTransfersViaRPC(ctx context.Context, chain Chain, erc20, to string, fromBlock uint64) ([]Transfer, error) {
	d, err := g.driver(chain)
	if err != nil {
		return nil, err
	}
	return d.GetTokenTransfersViaRPC(ctx, erc20, to, fromBlock)
}

// GetLatestBlockNumber dispatches a tip-height read to the registered
// driver.
func (g *Gateway) GetLatestBlockNumber(ctx context.Context, chain Chain) (uint64, error) {
	d, err := g.driver(chain)
	if err != nil {
		return 0, err
	}
	return d.GetLatestBlockNumber(ctx)
}

// GetFeeSettings dispatches a fee-view read to the registered driver.
func (g *Gateway) GetFeeSettings(ctx context.Context, chain Chain, vault string) (*FeeSettings, error) {
	d, err := g.driver(chain)
	if err != nil {
		return nil, err
	}
	return d.GetFeeSettings(ctx, vault)
}

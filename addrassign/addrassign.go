// Package addrassign implements the Address/Contract Assignment logic
// (C4): given an escrow's trade terms, it normalizes the chain alias the
// user picked and asks vaultregistry for the vault address that deposits
// land on. It derives nothing itself — the returned address is the vault
// contract address, not a per-user derived one.
package addrassign

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

// chainAliases collapses the chain names a user or chat-platform form
// might submit down to the canonical chain.Chain the registry indexes on.
var chainAliases = map[string]chain.Chain{
	"BSC":      chain.BSC,
	"BNB":      chain.BSC,
	"BEP-20":   chain.BSC,
	"BEP20":    chain.BSC,
	"ETH":      chain.ETH,
	"ETHEREUM": chain.ETH,
	"ERC-20":   chain.ETH,
	"ERC20":    chain.ETH,
	"POLYGON":  chain.Polygon,
	"MATIC":    chain.Polygon,
	"TRON":     chain.Tron,
	"TRC-20":   chain.Tron,
	"TRC20":    chain.Tron,
}

// NormalizeChain maps a raw chain label to its canonical chain.Chain,
// case-insensitively. An unrecognized label is returned as-is, uppercased,
// so a caller that already validated against a supported-chain list still
// gets a deterministic value rather than a silent empty string.
func NormalizeChain(raw string) chain.Chain {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if c, ok := chainAliases[upper]; ok {
		return c
	}
	return chain.Chain(upper)
}

// Assignment is the outcome of resolving a vault address for a trade.
type Assignment struct {
	Address string
	Chain   chain.Chain
}

// Assign normalizes rawChain and asks the registry for the vault address
// matching (token, normalized chain, feePercent, groupId).
func Assign(registry *vaultregistry.Registry, token chain.Token, rawChain string, feePercent decimal.Decimal, groupID string) (*Assignment, error) {
	normalized := NormalizeChain(rawChain)
	contract, err := registry.Resolve(token, normalized, feePercent, groupID)
	if err != nil {
		return nil, err
	}
	return &Assignment{Address: contract.Address, Chain: normalized}, nil
}

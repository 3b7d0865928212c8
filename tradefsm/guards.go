package tradefsm

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/escrowerr"
)

var (
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tronAddressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
)

// Limits bounds the wizard's step1_amount acceptance rule. Populated from
// escrowdconf at startup.
type Limits struct {
	MinTradeAmount decimal.Decimal
	MaxTradeAmount decimal.Decimal
}

// ValidateAmount implements step1_amount: positive, within [min, max]
// inclusive.
func ValidateAmount(amount decimal.Decimal, limits Limits) error {
	if !amount.IsPositive() {
		return escrowerr.Validationf("amount must be positive")
	}
	if amount.LessThan(limits.MinTradeAmount) {
		return escrowerr.Validationf("amount %s is below the minimum of %s", amount, limits.MinTradeAmount)
	}
	if amount.GreaterThan(limits.MaxTradeAmount) {
		return escrowerr.Validationf("amount %s exceeds the maximum of %s", amount, limits.MaxTradeAmount)
	}
	return nil
}

// ValidateRate implements step2_rate: a positive number.
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return escrowerr.Validationf("rate must be positive")
	}
	return nil
}

// ValidatePayment implements step3_payment: a non-empty string.
func ValidatePayment(method string) error {
	if strings.TrimSpace(method) == "" {
		return escrowerr.Validationf("payment method must not be empty")
	}
	return nil
}

// SupportedChainsAndTokens is consulted by ValidateChainCoin; it is
// populated from the vault registry's deployed rows so the wizard only
// offers chain/coin combinations a contract actually exists for.
type SupportedChainsAndTokens map[chain.Chain][]chain.Token

// ValidateChainCoin implements step4_chain_coin.
func ValidateChainCoin(supported SupportedChainsAndTokens, c chain.Chain, token chain.Token) error {
	tokens, ok := supported[c]
	if !ok {
		return escrowerr.Validationf("chain %s is not supported", c)
	}
	for _, t := range tokens {
		if t == token {
			return nil
		}
	}
	return escrowerr.Validationf("token %s is not supported on chain %s for this fee tier", token, c)
}

// ValidateAddress implements step5_buyer_address / step6_seller_address:
// chain-specific syntactic validation. EVM chains require 0x + 40 hex
// chars; Tron requires T followed by 33 base58 characters (the base58check
// checksum is not verified).
func ValidateAddress(c chain.Chain, address string) error {
	switch c {
	case chain.BSC, chain.ETH, chain.Polygon:
		if !evmAddressPattern.MatchString(address) {
			return escrowerr.Validationf("address %q is not a valid EVM address for %s", address, c)
		}
	case chain.Tron:
		if !tronAddressPattern.MatchString(address) {
			return escrowerr.Validationf("address %q is not a valid Tron address", address)
		}
	default:
		return escrowerr.Validationf("unrecognized chain %s", c)
	}
	return nil
}

package tradefsm

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/depositwatcher"
)

// DepositDecision is the outcome of folding one newly observed transfer
// into an escrow's deposit ledger.
type DepositDecision string

const (
	// DecisionNoChange means the transfer was already accounted for, or
	// did not land on the expected vault — it is ignored. The sender is
	// not checked.
	DecisionNoChange DepositDecision = "no_change"

	// DecisionPartial means the accumulated total is still short of the
	// expected amount; the escrow stays in awaiting_deposit and the
	// caller decides (via AwaitingPartialDecision) whether to prompt the
	// user to continue waiting or pay the remainder.
	DecisionPartial DepositDecision = "partial"

	// DecisionFull means the accumulated total meets or exceeds the
	// expected amount; the escrow should transition to deposited.
	DecisionFull DepositDecision = "full"
)

// ExpectedAmount returns the base-unit quantity the seller must deposit:
// Quantity converted to the token's base units for (Token, Chain).
func (e *Escrow) ExpectedAmount(decimals chain.DecimalsTable) (*big.Int, error) {
	return decimals.ToBaseUnits(e.Token, e.Chain, e.Quantity)
}

// accumulatedWei parses the ledger's exact running total, defaulting to
// zero for a fresh escrow.
func (e *Escrow) accumulatedWei() *big.Int {
	if e.AccumulatedDepositAmountWei == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(e.AccumulatedDepositAmountWei, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// ApplyDeposit folds one observed transfer into the escrow's deposit
// ledger, implementing the six-step deposit accounting algorithm:
//  1. scan for transfers landing on DepositAddress (done by the caller,
//     depositwatcher, before this is invoked)
//  2. sum the transfer into the running total, deduped by the watcher
//  3. compute the expected base-unit amount from Quantity and decimals
//  4. compare accumulated against expected
//  5. decide full vs partial
//  6. record LastCheckedBlock
//
// A transfer is accepted only if it targets this escrow's deposit
// address; transfers to any other address (a stale subscription that
// outlived its vault assignment) are rejected as DecisionNoChange without
// mutating the ledger.
func (e *Escrow) ApplyDeposit(d depositwatcher.Deposit, decimals chain.DecimalsTable) (DepositDecision, error) {
	t := d.Transfer

	if e.DepositAddress != "" && !addressesEqual(t.To, e.DepositAddress) {
		return DecisionNoChange, nil
	}

	dedupeKey := t.TxHash + ":" + strconv.FormatUint(uint64(t.LogIndex), 10)
	for _, seen := range e.PartialTransactionHashes {
		if seen == dedupeKey {
			return DecisionNoChange, nil
		}
	}

	expected, err := e.ExpectedAmount(decimals)
	if err != nil {
		return DecisionNoChange, err
	}

	value := t.ValueBase
	if value == nil {
		value, err = decimals.ToBaseUnits(e.Token, e.Chain, t.ValueDecimal)
		if err != nil {
			return DecisionNoChange, err
		}
	}

	total := new(big.Int).Add(e.accumulatedWei(), value)
	e.AccumulatedDepositAmountWei = total.String()
	e.AccumulatedDepositAmount, _ = decimals.ToHuman(e.Token, e.Chain, total)
	e.PartialTransactionHashes = append(e.PartialTransactionHashes, dedupeKey)
	if e.DepositTransactionFromAddress == "" {
		e.DepositTransactionFromAddress = t.From
	}
	if t.BlockNumber > e.LastCheckedBlock {
		e.LastCheckedBlock = t.BlockNumber
	}

	if total.Cmp(expected) >= 0 {
		e.AwaitingPartialDecision = false
		return DecisionFull, nil
	}

	e.AwaitingPartialDecision = true
	return DecisionPartial, nil
}

// RemainingToExpected returns how much base-unit value is still owed
// against Quantity, used to quote the "pay the remainder" amount when the
// seller chooses to top up a partial deposit rather than continue with it.
func (e *Escrow) RemainingToExpected(decimals chain.DecimalsTable) (decimal.Decimal, error) {
	expected, err := e.ExpectedAmount(decimals)
	if err != nil {
		return decimal.Decimal{}, err
	}
	remaining := new(big.Int).Sub(expected, e.accumulatedWei())
	if remaining.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return decimals.ToHuman(e.Token, e.Chain, remaining)
}

func addressesEqual(a, b string) bool {
	return lowerHex(a) == lowerHex(b)
}

// lowerHex normalizes a hex-like address for comparison without importing
// strings.ToLower's full machinery in a hot accounting path; Tron
// addresses are already case-sensitive base58 and pass through ASCII
// lowering harmlessly since they are compared only to themselves.
func lowerHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Package tradefsm implements the Trade State Machine (C5): the escrow
// aggregate root, its wizard, deposit accounting, release confirmation,
// and close-and-recycle flow. Grounded on contractcourt's
// resolver-per-channel idiom — every state transition is checkpointed to
// storage before the side effect it gates — generalized here to one
// machine per escrow instead of one resolver per channel-close contract.
package tradefsm

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chain"
)

// Status is the escrow's observable lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusAwaitingDetails Status = "awaiting_details"
	StatusAwaitingDeposit Status = "awaiting_deposit"
	StatusDeposited       Status = "deposited"
	StatusInFiatTransfer  Status = "in_fiat_transfer"
	StatusReadyToRelease  Status = "ready_to_release"
	StatusCompleted       Status = "completed"
	StatusRefunded        Status = "refunded"
	StatusCancelled       Status = "cancelled"
)

// WizardStep identifies the trade-details wizard's current cursor.
type WizardStep string

const (
	StepAmount     WizardStep = "step1_amount"
	StepRate       WizardStep = "step2_rate"
	StepPayment    WizardStep = "step3_payment"
	StepChainCoin  WizardStep = "step4_chain_coin"
	StepBuyerAddr  WizardStep = "step5_buyer_address"
	StepSellerAddr WizardStep = "step6_seller_address"
	StepCompleted  WizardStep = "completed"
)

// nextStep advances the wizard cursor in its fixed order.
var stepOrder = []WizardStep{
	StepAmount, StepRate, StepPayment, StepChainCoin, StepBuyerAddr, StepSellerAddr, StepCompleted,
}

func nextStep(cur WizardStep) WizardStep {
	for i, s := range stepOrder {
		if s == cur && i+1 < len(stepOrder) {
			return stepOrder[i+1]
		}
	}
	return StepCompleted
}

// Escrow is the aggregate root: one trade, end to end.
type Escrow struct {
	EscrowID string

	// Participants.
	CreatorID        string
	BuyerID          string
	SellerID         string
	BuyerUsername    string
	SellerUsername   string
	AllowedUserIDs   []string
	ApprovedUserIDs  []string

	// Room.
	GroupID          string
	OriginChatID     string
	AssignedFromPool bool

	// Trade terms.
	Quantity      decimal.Decimal
	Rate          decimal.Decimal
	PaymentMethod string
	Token         chain.Token
	Chain         chain.Chain
	FeePercent    decimal.Decimal
	NetworkFee    decimal.Decimal
	BuyerAddress  string
	SellerAddress string

	// Wizard cursor.
	TradeDetailsStep WizardStep

	// Approvals.
	BuyerApproved          bool
	SellerApproved         bool
	BuyerConfirmedRelease  bool
	SellerConfirmedRelease bool
	BuyerSentFiat          bool
	SellerReceivedFiat     bool
	BuyerClosedTrade       bool
	SellerClosedTrade      bool

	// Deposit ledger.
	DepositAddress                string
	DepositTransactionFromAddress string
	AccumulatedDepositAmount      decimal.Decimal
	AccumulatedDepositAmountWei   string // big.Int decimal string; gob-friendly and exact
	PartialTransactionHashes      []string // "txHash:logIndex", same granularity as the watcher's dedupe key
	LastCheckedBlock              uint64
	AwaitingPartialDecision       bool

	// Release receipt.
	ReleaseTransactionHash string

	// Status.
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBothRoles reports whether both buyer and seller have been chosen,
// the draft→awaiting_details guard.
func (e *Escrow) HasBothRoles() bool {
	return e.BuyerID != "" && e.SellerID != "" && e.BuyerID != e.SellerID
}

// BothApproved reports whether both parties approved the deal summary.
func (e *Escrow) BothApproved() bool {
	return e.BuyerApproved && e.SellerApproved
}

// ReadyForRelease reports whether both parties confirmed release.
func (e *Escrow) ReadyForRelease() bool {
	return e.BuyerConfirmedRelease && e.SellerConfirmedRelease
}

// Package tradefsm's Manager is the composition point for the trade
// state machine: one Manager instance owns every escrow in the process,
// locking per escrow ID the way contractcourt's ChainArbitrator locks per
// channel point so two inbound events for the same trade never race each
// other while unrelated trades proceed concurrently.
package tradefsm

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/addrassign"
	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/chatadapter"
	"github.com/p2pmmx/escrowd/depositwatcher"
	"github.com/p2pmmx/escrowd/escrowerr"
	"github.com/p2pmmx/escrowd/metrics"
	"github.com/p2pmmx/escrowd/roompool"
	"github.com/p2pmmx/escrowd/schedule"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

// Manager wires the trade state machine to every collaborator an escrow
// needs across its lifetime.
type Manager struct {
	store     *Store
	gateway   *chain.Gateway
	registry  *vaultregistry.Registry
	pool      *roompool.Pool
	scheduler *schedule.Scheduler
	chat      chatadapter.Adapter
	watcher   *depositwatcher.Watcher
	limits    Limits

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// defaultFeePercent is charged on every trade; the operator tooling
	// that provisions a per-group pinned vault is how a group gets a
	// different tier, not a per-trade negotiation.
	defaultFeePercent decimal.Decimal
}

// NewManager constructs a Manager. Callers must separately pump
// scheduler.Fires() into HandleTimerFire and watcher.Deposits() into
// HandleDeposit from their own goroutines — the Manager does not start
// its own background loops; long-running subsystems are composed and
// started from main rather than each one self-starting.
func NewManager(store *Store, gateway *chain.Gateway, registry *vaultregistry.Registry, pool *roompool.Pool, scheduler *schedule.Scheduler, chat chatadapter.Adapter, watcher *depositwatcher.Watcher, limits Limits, defaultFeePercent decimal.Decimal) *Manager {
	return &Manager{
		store:             store,
		gateway:           gateway,
		registry:          registry,
		pool:              pool,
		scheduler:         scheduler,
		chat:              chat,
		watcher:           watcher,
		limits:            limits,
		locks:             make(map[string]*sync.Mutex),
		defaultFeePercent: defaultFeePercent,
	}
}

func (m *Manager) lockFor(escrowID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[escrowID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[escrowID] = l
	}
	return l
}

// withEscrow loads escrowID under its per-escrow lock, applies fn, and
// persists the result iff fn returns no error. fn mutates e in place.
func (m *Manager) withEscrow(escrowID string, fn func(e *Escrow) error) error {
	lock := m.lockFor(escrowID)
	lock.Lock()
	defer lock.Unlock()

	e, err := m.store.Load(escrowID)
	if err != nil {
		return err
	}
	from := e.Status
	if err := fn(e); err != nil {
		return err
	}
	e.UpdatedAt = time.Now()
	if e.Status != from {
		metrics.EscrowTransitions.WithLabelValues(string(from), string(e.Status)).Inc()
	}
	return m.store.Save(e)
}

// CreateDraft opens a new escrow for creatorID in groupID, the entry
// point for /deal. It arms the join timeout immediately: if both buyer
// and seller haven't been identified within JoinTimeoutDuration, the
// trade is canceled.
func (m *Manager) CreateDraft(creatorID, groupID, originChatID string) (*Escrow, error) {
	id, err := m.store.NextEscrowID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	e := &Escrow{
		EscrowID:         id,
		CreatorID:        creatorID,
		GroupID:          groupID,
		OriginChatID:     originChatID,
		Status:           StatusDraft,
		TradeDetailsStep: StepAmount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.Save(e); err != nil {
		return nil, err
	}
	m.scheduler.Schedule(id, schedule.KindJoinTimeout, schedule.JoinTimeoutDuration)
	return e, nil
}

// SetRoles records which identified user is the buyer and which is the
// seller, the draft→awaiting_details transition's guard. Once both roles
// are set the join timeout is canceled — the trade is no longer at risk
// of expiring for lack of a counterparty.
func (m *Manager) SetRoles(escrowID, buyerID, buyerUsername, sellerID, sellerUsername string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusDraft {
			return escrowerr.Conflictf("escrow %s is not in draft", escrowID)
		}
		e.BuyerID, e.BuyerUsername = buyerID, buyerUsername
		e.SellerID, e.SellerUsername = sellerID, sellerUsername
		if !e.HasBothRoles() {
			return escrowerr.Validationf("buyer and seller must be distinct identified users")
		}
		e.AllowedUserIDs = []string{buyerID, sellerID}
		e.Status = StatusAwaitingDetails
		m.scheduler.Cancel(escrowID, schedule.KindJoinTimeout)
		return nil
	})
}

// SetAmount applies step1_amount and advances the wizard cursor.
func (m *Manager) SetAmount(escrowID string, amount decimal.Decimal) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if err := m.requireWizardStep(e, StepAmount); err != nil {
			return err
		}
		if err := ValidateAmount(amount, m.limits); err != nil {
			return err
		}
		e.Quantity = amount
		e.TradeDetailsStep = nextStep(StepAmount)
		return nil
	})
}

// SetRate applies step2_rate.
func (m *Manager) SetRate(escrowID string, rate decimal.Decimal) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if err := m.requireWizardStep(e, StepRate); err != nil {
			return err
		}
		if err := ValidateRate(rate); err != nil {
			return err
		}
		e.Rate = rate
		e.TradeDetailsStep = nextStep(StepRate)
		return nil
	})
}

// SetPayment applies step3_payment.
func (m *Manager) SetPayment(escrowID, method string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if err := m.requireWizardStep(e, StepPayment); err != nil {
			return err
		}
		if err := ValidatePayment(method); err != nil {
			return err
		}
		e.PaymentMethod = method
		e.TradeDetailsStep = nextStep(StepPayment)
		return nil
	})
}

// SetChainCoin applies step4_chain_coin and stamps the trade with the
// manager's default fee tier; the vault contract for that tier is resolved
// later, when both parties approve.
func (m *Manager) SetChainCoin(escrowID string, rawChain string, token chain.Token) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if err := m.requireWizardStep(e, StepChainCoin); err != nil {
			return err
		}
		normalized := addrassign.NormalizeChain(rawChain)
		supported := m.supportedChainsAndTokens()
		if err := ValidateChainCoin(supported, normalized, token); err != nil {
			return err
		}
		e.Chain = normalized
		e.Token = token
		e.FeePercent = m.defaultFeePercent
		e.TradeDetailsStep = nextStep(StepChainCoin)
		return nil
	})
}

func (m *Manager) supportedChainsAndTokens() SupportedChainsAndTokens {
	out := SupportedChainsAndTokens{}
	for _, c := range []chain.Chain{chain.BSC, chain.ETH, chain.Polygon, chain.Tron} {
		for _, t := range []chain.Token{chain.USDT, chain.USDC} {
			if _, err := m.gateway.Decimals().Decimals(t, c); err == nil {
				out[c] = append(out[c], t)
			}
		}
	}
	return out
}

// SetBuyerAddress applies step5_buyer_address.
func (m *Manager) SetBuyerAddress(escrowID, address string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if err := m.requireWizardStep(e, StepBuyerAddr); err != nil {
			return err
		}
		if err := ValidateAddress(e.Chain, address); err != nil {
			return err
		}
		e.BuyerAddress = address
		e.TradeDetailsStep = nextStep(StepBuyerAddr)
		return nil
	})
}

// SetSellerAddress applies step6_seller_address, completing the wizard.
func (m *Manager) SetSellerAddress(escrowID, address string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if err := m.requireWizardStep(e, StepSellerAddr); err != nil {
			return err
		}
		if err := ValidateAddress(e.Chain, address); err != nil {
			return err
		}
		e.SellerAddress = address
		e.TradeDetailsStep = nextStep(StepSellerAddr)
		return nil
	})
}

func (m *Manager) requireWizardStep(e *Escrow, want WizardStep) error {
	if e.Status != StatusAwaitingDetails {
		return escrowerr.Conflictf("escrow %s is not collecting trade details", e.EscrowID)
	}
	if e.TradeDetailsStep != want {
		return escrowerr.Conflictf("escrow %s is on wizard step %s, not %s", e.EscrowID, e.TradeDetailsStep, want)
	}
	return nil
}

// Approve records one party's approval of the completed deal summary.
// Once both have approved, the escrow is assigned a pooled room and a
// deposit vault, and moves to awaiting_deposit.
func (m *Manager) Approve(ctx context.Context, escrowID, userID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusAwaitingDetails || e.TradeDetailsStep != StepCompleted {
			return escrowerr.Conflictf("escrow %s has not finished the trade-details wizard", escrowID)
		}
		switch userID {
		case e.BuyerID:
			e.BuyerApproved = true
		case e.SellerID:
			e.SellerApproved = true
		default:
			return escrowerr.Unauthorizedf("user %s is not a party to escrow %s", userID, escrowID)
		}
		if !e.BothApproved() {
			return nil
		}
		return m.assignVaultAndRoom(ctx, e)
	})
}

// assignVaultAndRoom resolves the fee-tier vault and leases a pooled
// room, the two allocations that must both succeed before an escrow can
// start waiting for a deposit. Room assignment happens second since it
// is the system's one cross-escrow race; failing it after the vault is
// already resolved just means the vault resolution is redone on retry,
// which is idempotent.
func (m *Manager) assignVaultAndRoom(ctx context.Context, e *Escrow) error {
	assignment, err := addrassign.Assign(m.registry, e.Token, string(e.Chain), e.FeePercent, e.GroupID)
	if err != nil {
		return err
	}
	e.Chain = assignment.Chain
	e.DepositAddress = assignment.Address

	if e.GroupID == "" {
		room, err := m.pool.AssignRoom(ctx, e.EscrowID, e.FeePercent)
		if err != nil {
			return err
		}
		e.GroupID = room.ID
		e.AssignedFromPool = true
	}

	e.Status = StatusAwaitingDeposit
	m.scheduler.Schedule(e.EscrowID, schedule.KindInactivityTimeout, schedule.InactivityTimeoutDuration)
	if m.watcher != nil {
		m.watcher.Subscribe(e.EscrowID, e.Chain, e.DepositAddress, string(e.Token), e.LastCheckedBlock)
	}
	return nil
}

// HandleDeposit folds one observed transfer into escrowID's deposit
// ledger and advances the escrow to deposited once the expected amount
// is met. Intended to be run from a goroutine draining
// depositwatcher.Watcher.Deposits().
func (m *Manager) HandleDeposit(d depositwatcher.Deposit) error {
	return m.withEscrow(d.EscrowID, func(e *Escrow) error {
		if e.Status != StatusAwaitingDeposit {
			return nil
		}
		decision, err := e.ApplyDeposit(d, m.gateway.Decimals())
		if err != nil {
			return err
		}
		if decision == DecisionFull {
			e.Status = StatusDeposited
			m.scheduler.Cancel(e.EscrowID, schedule.KindInactivityTimeout)
			if m.watcher != nil {
				m.watcher.Unsubscribe(e.EscrowID)
			}
			log.Infof("escrow %s fully deposited at %s", e.EscrowID, d.Transfer.TxHash)
		}
		return nil
	})
}

// ContinueWithPartial lets the seller accept a short deposit as final:
// quantity snaps down to whatever actually accumulated and the escrow
// advances straight to deposited, the same transition HandleDeposit takes
// on a full deposit. Only the seller may resolve the partial-deposit
// prompt; any other caller is unauthorized.
func (m *Manager) ContinueWithPartial(escrowID, userID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusAwaitingDeposit || !e.AwaitingPartialDecision {
			return escrowerr.Conflictf("escrow %s has no partial deposit awaiting a decision", escrowID)
		}
		if userID != e.SellerID {
			return escrowerr.Unauthorizedf("user %s is not the seller on escrow %s", userID, escrowID)
		}
		e.Quantity = e.AccumulatedDepositAmount
		e.AwaitingPartialDecision = false
		e.Status = StatusDeposited
		m.scheduler.Cancel(e.EscrowID, schedule.KindInactivityTimeout)
		if m.watcher != nil {
			m.watcher.Unsubscribe(e.EscrowID)
		}
		log.Infof("escrow %s continuing with partial deposit %s", e.EscrowID, e.Quantity)
		return nil
	})
}

// PayRemaining acknowledges the partial-deposit prompt without advancing
// the escrow: the seller intends to top up the rest, so the escrow stays
// in awaiting_deposit and further transfers keep accumulating through
// HandleDeposit exactly as they did before the prompt fired.
func (m *Manager) PayRemaining(escrowID, userID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusAwaitingDeposit || !e.AwaitingPartialDecision {
			return escrowerr.Conflictf("escrow %s has no partial deposit awaiting a decision", escrowID)
		}
		if userID != e.SellerID {
			return escrowerr.Unauthorizedf("user %s is not the seller on escrow %s", userID, escrowID)
		}
		e.AwaitingPartialDecision = false
		return nil
	})
}

// MarkFiatSent records the buyer's claim that fiat payment has been
// sent, the deposited→in_fiat_transfer transition.
func (m *Manager) MarkFiatSent(escrowID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusDeposited {
			return escrowerr.Conflictf("escrow %s has no confirmed deposit yet", escrowID)
		}
		e.BuyerSentFiat = true
		e.Status = StatusInFiatTransfer
		return nil
	})
}

// MarkFiatReceived records the seller's acknowledgement that fiat arrived.
func (m *Manager) MarkFiatReceived(escrowID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusInFiatTransfer {
			return escrowerr.Conflictf("escrow %s is not awaiting fiat confirmation", escrowID)
		}
		e.SellerReceivedFiat = true
		e.Status = StatusReadyToRelease
		return nil
	})
}

// ConfirmRelease records one party's release confirmation. Once both have
// confirmed, funds move: the accumulated on-chain deposit, to the wei,
// releases to the buyer's address.
func (m *Manager) ConfirmRelease(ctx context.Context, escrowID, userID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusReadyToRelease {
			return escrowerr.Conflictf("escrow %s is not ready to release", escrowID)
		}
		switch userID {
		case e.BuyerID:
			e.BuyerConfirmedRelease = true
		case e.SellerID:
			e.SellerConfirmedRelease = true
		default:
			return escrowerr.Unauthorizedf("user %s is not a party to escrow %s", userID, escrowID)
		}
		if !e.ReadyForRelease() {
			return nil
		}
		return m.release(ctx, e)
	})
}

// release invokes the chain gateway's ReleaseFunds with the exact
// accumulated base-unit amount, never the human Quantity, so a partial
// deposit that was accepted as "full enough" (or a dust-exceeding
// deposit) releases exactly what arrived rather than what was quoted.
func (m *Manager) release(ctx context.Context, e *Escrow) error {
	amount := e.accumulatedWei()
	result, err := m.gateway.ReleaseFunds(ctx, e.Chain, e.DepositAddress, e.BuyerAddress, e.AccumulatedDepositAmount, amount)
	metrics.ReleaseAttempts.WithLabelValues(string(e.Chain), "release", releaseOutcome(err)).Inc()
	if err != nil {
		return err
	}
	e.ReleaseTransactionHash = result.TransactionHash
	e.Status = StatusCompleted
	log.Infof("escrow %s released, tx=%s", e.EscrowID, result.TransactionHash)
	return nil
}

// CloseTrade records a single close-click against a completed trade. Any
// one of buyer, seller, or an admin closing is sufficient to trigger the
// room recycle grace timer — the other party's click, if it ever comes,
// just re-records its own flag against an already-scheduled recycle.
func (m *Manager) CloseTrade(escrowID, userID string, isAdmin bool) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		if e.Status != StatusCompleted {
			return escrowerr.Conflictf("escrow %s is not completed", escrowID)
		}
		switch {
		case isAdmin:
		case userID == e.BuyerID:
			e.BuyerClosedTrade = true
		case userID == e.SellerID:
			e.SellerClosedTrade = true
		default:
			return escrowerr.Unauthorizedf("user %s is not a party to escrow %s", userID, escrowID)
		}
		if e.AssignedFromPool && e.GroupID != "" {
			m.scheduler.Schedule(e.EscrowID, schedule.KindRecycleGrace, schedule.RecycleGraceDuration)
		}
		return nil
	})
}

// Cancel aborts an escrow that has not yet received a deposit. Canceling
// after a deposit lands is not permitted through this path — use Refund,
// which returns the seller's deposit on chain before closing.
func (m *Manager) Cancel(escrowID, reason string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		switch e.Status {
		case StatusDraft, StatusAwaitingDetails, StatusAwaitingDeposit:
		default:
			return escrowerr.Conflictf("escrow %s has progressed past the point where it can be canceled", escrowID)
		}
		e.Status = StatusCancelled
		m.scheduler.CancelAll(escrowID)
		if m.watcher != nil {
			m.watcher.Unsubscribe(escrowID)
		}
		if e.AssignedFromPool && e.GroupID != "" {
			m.scheduler.Schedule(escrowID, schedule.KindRecycleGrace, schedule.RecycleGraceDuration)
		}
		return nil
	})
}

// Refund returns the accumulated deposit to the seller's address (a
// failed trade's funds go back to whoever is owed them, per operator
// adjudication — the seller is the counterparty expecting the crypto
// back when fiat never arrived) and closes the escrow.
func (m *Manager) Refund(ctx context.Context, escrowID string) error {
	return m.withEscrow(escrowID, func(e *Escrow) error {
		switch e.Status {
		case StatusDeposited, StatusInFiatTransfer, StatusReadyToRelease:
		default:
			return escrowerr.Conflictf("escrow %s has no deposit to refund", escrowID)
		}
		amount := e.accumulatedWei()
		result, err := m.gateway.RefundFunds(ctx, e.Chain, e.DepositAddress, e.SellerAddress, e.AccumulatedDepositAmount, amount)
		metrics.ReleaseAttempts.WithLabelValues(string(e.Chain), "refund", releaseOutcome(err)).Inc()
		if err != nil {
			return err
		}
		e.ReleaseTransactionHash = result.TransactionHash
		e.Status = StatusRefunded
		m.scheduler.CancelAll(escrowID)
		if m.watcher != nil {
			m.watcher.Unsubscribe(escrowID)
		}
		m.scheduler.Schedule(escrowID, schedule.KindRecycleGrace, schedule.RecycleGraceDuration)
		return nil
	})
}

// HandleTimerFire reacts to one fired timer, dispatched by Kind. Intended
// to be run from a goroutine draining scheduler.Scheduler.Fires().
func (m *Manager) HandleTimerFire(ctx context.Context, f schedule.Fire) error {
	switch f.Kind {
	case schedule.KindJoinTimeout:
		return m.Cancel(f.EscrowID, "join timeout elapsed")
	case schedule.KindInactivityTimeout:
		return m.withEscrow(f.EscrowID, func(e *Escrow) error {
			if e.Status != StatusAwaitingDeposit {
				return nil
			}
			e.Status = StatusCancelled
			if m.watcher != nil {
				m.watcher.Unsubscribe(f.EscrowID)
			}
			if e.AssignedFromPool {
				m.scheduler.Schedule(f.EscrowID, schedule.KindRecycleGrace, schedule.RecycleGraceDuration)
			}
			return nil
		})
	case schedule.KindRecycleGrace:
		return m.recycleRoom(ctx, f.EscrowID)
	case schedule.KindMessageTTL:
		return nil
	default:
		return escrowerr.Internalf(nil, "unrecognized timer kind %s", f.Kind)
	}
}

func releaseOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// recycleRoom returns a pooled room to the available pool once the grace
// delay after a terminal state has elapsed.
func (m *Manager) recycleRoom(ctx context.Context, escrowID string) error {
	e, err := m.store.Load(escrowID)
	if err != nil {
		return err
	}
	if !e.AssignedFromPool || e.GroupID == "" {
		return nil
	}
	room, err := m.pool.Store().Get(ctx, e.GroupID)
	if err != nil {
		return err
	}
	return m.pool.Recycle(ctx, room, e.AllowedUserIDs)
}

// Package depositwatcher implements the Deposit Watcher (C6): a central
// scanner keyed by (chain, vaultAddress) that demultiplexes observed
// Transfer events to every escrow currently awaiting a deposit on that
// vault, grounded on watchtower's epoch-driven block scanning fanning one
// block epoch out to many active sessions — generalized here to one scan
// fanning out to many escrows sharing a vault address over time.
package depositwatcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/metrics"
)

// ExplorerFallback is consulted when an RPC scan returns no transfers
// over a configured window, covering RPC nodes with a short retention
// window or a flaky archive. It is an external collaborator; no concrete
// implementation ships in this package.
type ExplorerFallback interface {
	GetTokenTransfers(ctx context.Context, chain chain.Chain, erc20, vaultAddress string, fromBlock uint64) ([]chain.Transfer, error)
}

// Deposit is delivered once per (escrowID, txHash, logIndex), the unit
// the trade state machine folds into its deposit accounting algorithm.
type Deposit struct {
	EscrowID string
	Transfer chain.Transfer
}

// address identifies one scan target: the ERC20/TRC20 contract whose
// Transfer events are scanned, filtered to those landing on Vault.
type address struct {
	Chain chain.Chain
	Vault string
	Token string
}

type subscription struct {
	escrowID  string
	fromBlock uint64
}

// scanState tracks dedup and subscriber state for one (chain, vault)
// pair.
type scanState struct {
	token         string
	seen          map[string]struct{} // "txHash:logIndex"
	subscriptions map[string]*subscription
	lastScanned   uint64

	// emptySince marks when the RPC scan first started coming back
	// empty; it resets to zero the moment a scan finds anything. The
	// explorer fallback only engages once this has held for rpcWindow.
	emptySince time.Time
}

func dedupeKey(t chain.Transfer) string {
	return t.TxHash + ":" + itoa(t.LogIndex)
}

func itoa(u uint) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// Watcher owns every active scan target. Call Run in its own goroutine;
// consume Deposits() to learn about newly observed transfers.
type Watcher struct {
	gateway      *chain.Gateway
	explorer     ExplorerFallback
	pollInterval time.Duration
	rpcWindow    time.Duration

	mu      sync.Mutex
	targets map[address]*scanState
	limits  map[chain.Chain]*rate.Limiter

	deposits chan Deposit
	closeCh  chan struct{}
}

// Config controls polling cadence and per-chain rate limits.
type Config struct {
	PollInterval time.Duration
	// RatePerSecond bounds RPC calls per chain; zero uses a 2 req/s
	// default, conservative enough for a shared public endpoint.
	RatePerSecond map[chain.Chain]float64
}

// New constructs a Watcher. explorer may be nil, in which case a scan
// that returns no transfers is simply reported empty with no fallback.
func New(gateway *chain.Gateway, explorer ExplorerFallback, cfg Config) *Watcher {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 7 * time.Second
	}
	limits := make(map[chain.Chain]*rate.Limiter)
	for c, r := range cfg.RatePerSecond {
		if r <= 0 {
			continue
		}
		limits[c] = rate.NewLimiter(rate.Limit(r), 1)
	}

	return &Watcher{
		gateway:      gateway,
		explorer:     explorer,
		pollInterval: poll,
		rpcWindow:    2 * time.Minute,
		targets:      make(map[address]*scanState),
		limits:       limits,
		deposits:     make(chan Deposit, 256),
		closeCh:      make(chan struct{}),
	}
}

// Deposits is the channel newly observed, deduplicated transfers are
// delivered on.
func (w *Watcher) Deposits() <-chan Deposit { return w.deposits }

// Close stops the background Run loop.
func (w *Watcher) Close() { close(w.closeCh) }

// Subscribe registers escrowID as awaiting deposits on (chain, vault,
// tokenContract) starting from fromBlock. Multiple escrows may subscribe
// to the same vault address across time, never concurrently in practice
// since a vault is assigned to one escrow at a time, but the fan-out
// handles concurrent subscriptions without special-casing.
func (w *Watcher) Subscribe(escrowID string, c chain.Chain, vault, tokenContract string, fromBlock uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := address{Chain: c, Vault: vault, Token: tokenContract}
	state, ok := w.targets[key]
	if !ok {
		state = &scanState{
			token:         tokenContract,
			seen:          make(map[string]struct{}),
			subscriptions: make(map[string]*subscription),
			lastScanned:   fromBlock,
		}
		w.targets[key] = state
	}
	state.subscriptions[escrowID] = &subscription{escrowID: escrowID, fromBlock: fromBlock}
	if fromBlock < state.lastScanned {
		state.lastScanned = fromBlock
	}
}

// Unsubscribe removes escrowID from every target it was registered
// against, called when an escrow leaves awaiting_deposit (deposited,
// cancelled, or refunded).
func (w *Watcher) Unsubscribe(escrowID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, state := range w.targets {
		delete(state.subscriptions, escrowID)
		if len(state.subscriptions) == 0 {
			delete(w.targets, key)
		}
	}
}

// Run polls every active scan target at pollInterval until ctx is
// canceled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scanAll(ctx)
		}
	}
}

// ScanNow triggers an immediate out-of-cycle scan of every target, used
// by C5 to check for a deposit on demand (e.g. a user pressing
// "I've sent it").
func (w *Watcher) ScanNow(ctx context.Context) {
	w.scanAll(ctx)
}

func (w *Watcher) scanAll(ctx context.Context) {
	w.mu.Lock()
	keys := make([]address, 0, len(w.targets))
	for k := range w.targets {
		keys = append(keys, k)
	}
	w.mu.Unlock()

	for _, key := range keys {
		w.scanOne(ctx, key)
	}
}

func (w *Watcher) limiterFor(c chain.Chain) *rate.Limiter {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.limits[c]
	if !ok {
		l = rate.NewLimiter(2, 1)
		w.limits[c] = l
	}
	return l
}

func (w *Watcher) scanOne(ctx context.Context, key address) {
	if err := w.limiterFor(key.Chain).Wait(ctx); err != nil {
		return
	}

	w.mu.Lock()
	state, ok := w.targets[key]
	if !ok {
		w.mu.Unlock()
		return
	}
	fromBlock := state.lastScanned
	w.mu.Unlock()

	transfers, err := w.gateway.GetTokenTransfersViaRPC(ctx, key.Chain, key.Token, key.Vault, fromBlock)
	if err != nil {
		log.Warnf("scan %s/%s: %v", key.Chain, key.Vault, err)
		metrics.DepositScans.WithLabelValues(string(key.Chain), "error").Inc()
		return
	}

	if len(transfers) == 0 {
		transfers = w.maybeFallback(ctx, key, fromBlock)
	} else {
		w.mu.Lock()
		if s, ok := w.targets[key]; ok {
			s.emptySince = time.Time{}
		}
		w.mu.Unlock()
	}

	outcome := "empty"
	if len(transfers) > 0 {
		outcome = "found"
	}
	metrics.DepositScans.WithLabelValues(string(key.Chain), outcome).Inc()

	w.deliver(key, transfers)
}

// maybeFallback consults the explorer only once the RPC scan has come
// back empty continuously for rpcWindow.
func (w *Watcher) maybeFallback(ctx context.Context, key address, fromBlock uint64) []chain.Transfer {
	if w.explorer == nil {
		return nil
	}

	w.mu.Lock()
	state, ok := w.targets[key]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	if state.emptySince.IsZero() {
		state.emptySince = time.Now()
		w.mu.Unlock()
		return nil
	}
	due := time.Since(state.emptySince) > w.rpcWindow
	w.mu.Unlock()
	if !due {
		return nil
	}

	fallback, err := w.explorer.GetTokenTransfers(ctx, key.Chain, key.Token, key.Vault, fromBlock)
	if err != nil {
		return nil
	}
	return fallback
}

func (w *Watcher) deliver(key address, transfers []chain.Transfer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.targets[key]
	if !ok {
		return
	}

	var maxBlock uint64
	for _, t := range transfers {
		if t.BlockNumber > maxBlock {
			maxBlock = t.BlockNumber
		}
		dk := dedupeKey(t)
		if _, already := state.seen[dk]; already {
			continue
		}
		state.seen[dk] = struct{}{}

		for _, sub := range state.subscriptions {
			w.deposits <- Deposit{EscrowID: sub.escrowID, Transfer: t}
		}
	}
	if maxBlock > state.lastScanned {
		state.lastScanned = maxBlock
	}
}

// Package escrowtest is an in-process integration harness for exercising
// the trade state machine against fake chain and chat collaborators and a
// real, temp-file-backed escrowdb, the same "harness owns every fake
// dependency" idiom lntest.NetworkHarness uses for full lnd nodes, scaled
// down to an in-process struct since the coordinator has no analogous
// out-of-process binary to spawn.
package escrowtest

import (
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/chatadapter"
	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/escrowerr"
	"github.com/p2pmmx/escrowd/roompool"
	"github.com/p2pmmx/escrowd/schedule"
	"github.com/p2pmmx/escrowd/tradefsm"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

// FakeDriver is an in-memory chain.Driver recording every call it
// receives, for assertions on what the state machine actually tried to
// do on chain.
type FakeDriver struct {
	mu        sync.Mutex
	Released  []string
	Refunded  []string
	Transfers []chain.Transfer
}

func (f *FakeDriver) ReleaseFunds(ctx context.Context, vault, to string, amt decimal.Decimal, override *big.Int) (*chain.ReleaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Released = append(f.Released, to)
	return &chain.ReleaseResult{TransactionHash: "0xrelease"}, nil
}

func (f *FakeDriver) RefundFunds(ctx context.Context, vault, to string, amt decimal.Decimal, override *big.Int) (*chain.ReleaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refunded = append(f.Refunded, to)
	return &chain.ReleaseResult{TransactionHash: "0xrefund"}, nil
}

func (f *FakeDriver) WithdrawToken(ctx context.Context, vault, erc20, to string) (*chain.ReleaseResult, error) {
	return nil, nil
}

func (f *FakeDriver) GetTokenBalance(ctx context.Context, erc20, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *FakeDriver) GetTokenTransfersViaRPC(ctx context.Context, erc20, to string, fromBlock uint64) ([]chain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Transfers, nil
}

func (f *FakeDriver) GetLatestBlockNumber(ctx context.Context) (uint64, error) { return 1, nil }

func (f *FakeDriver) GetFeeSettings(ctx context.Context, vault string) (*chain.FeeSettings, error) {
	return nil, nil
}

// PushTransfer appends a transfer the next RPC-backed scan will observe.
func (f *FakeDriver) PushTransfer(t chain.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Transfers = append(f.Transfers, t)
}

// MemRoomStore is an in-memory roompool.Store, used in place of escrowdb
// when a test doesn't need the room pool's persistence to survive a
// process restart.
type MemRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*roompool.Room
}

// NewMemRoomStore seeds a store with the given rooms.
func NewMemRoomStore(rooms ...*roompool.Room) *MemRoomStore {
	m := &MemRoomStore{rooms: make(map[string]*roompool.Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *MemRoomStore) ListAvailable(ctx context.Context) ([]*roompool.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*roompool.Room
	for _, r := range m.rooms {
		if r.Status == roompool.StatusAvailable {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemRoomStore) CASAssign(ctx context.Context, roomID, escrowID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || r.Status != roompool.StatusAvailable {
		return false, nil
	}
	r.Status = roompool.StatusAssigned
	r.AssignedEscrowID = escrowID
	r.AssignedAt = now
	return true, nil
}

func (m *MemRoomStore) Get(ctx context.Context, roomID string) (*roompool.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, escrowerr.NotFoundf("no room %s", roomID)
	}
	cp := *r
	return &cp, nil
}

func (m *MemRoomStore) Update(ctx context.Context, room *roompool.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

// FakeChat is a no-op chatadapter.Adapter recording nothing; scenarios
// that need to assert on chat traffic should wrap this with their own
// recording adapter instead of extending it, to keep this harness's
// surface stable across callers.
type FakeChat struct{}

func (f *FakeChat) SendText(ctx context.Context, roomID, text string, buttons []chatadapter.Button) (string, error) {
	return "msg-1", nil
}
func (f *FakeChat) SendPhoto(ctx context.Context, roomID, imageRef, caption string, buttons []chatadapter.Button) (string, error) {
	return "msg-1", nil
}
func (f *FakeChat) EditText(ctx context.Context, roomID, messageID, text string, buttons []chatadapter.Button) error {
	return nil
}
func (f *FakeChat) EditCaption(ctx context.Context, roomID, messageID, caption string, buttons []chatadapter.Button) error {
	return nil
}
func (f *FakeChat) DeleteMessage(ctx context.Context, roomID, messageID string) error { return nil }
func (f *FakeChat) PinMessage(ctx context.Context, roomID, messageID string) error    { return nil }
func (f *FakeChat) UnpinMessage(ctx context.Context, roomID, messageID string) error  { return nil }
func (f *FakeChat) ApproveJoin(ctx context.Context, roomID, userID string) error      { return nil }
func (f *FakeChat) DeclineJoin(ctx context.Context, roomID, userID string) error      { return nil }
func (f *FakeChat) Kick(ctx context.Context, roomID, userID string) error             { return nil }
func (f *FakeChat) RevokeInviteLink(ctx context.Context, roomID string) error         { return nil }
func (f *FakeChat) CreateInviteLink(ctx context.Context, roomID string) (string, error) {
	return "invite-link", nil
}

// Harness wires a real tradefsm.Manager atop a temp-file escrowdb, a
// FakeDriver for BSC/USDT, a seeded single-room MemRoomStore, and a
// FakeChat, the fixed fixture most escrow lifecycle scenarios need.
type Harness struct {
	T       *testing.T
	DB      *escrowdb.DB
	Store   *tradefsm.Store
	Driver  *FakeDriver
	Rooms   *MemRoomStore
	Chat    *FakeChat
	Gateway *chain.Gateway
	Manager *tradefsm.Manager
}

// New builds a Harness against t's temp directory, cleaned up
// automatically when the test completes.
func New(t *testing.T) *Harness {
	t.Helper()

	db, err := escrowdb.Open(filepath.Join(t.TempDir(), "escrow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := tradefsm.NewStore(db)
	driver := &FakeDriver{}

	decimals := chain.DecimalsTable{
		{Token: chain.USDT, Chain: chain.BSC}: 18,
	}
	gateway := chain.NewGateway(map[chain.Chain]chain.Driver{chain.BSC: driver}, decimals)

	registry := vaultregistry.New()
	require.NoError(t, registry.Reload([]*vaultregistry.Contract{
		{
			Name:           "EscrowVault",
			Token:          chain.USDT,
			Chain:          chain.BSC,
			Address:        "0xvault000000000000000000000000000000000",
			FeePercent:     decimal.NewFromFloat(0.25),
			FeeBasisPoints: 25,
			Status:         vaultregistry.StatusDeployed,
		},
	}))

	rooms := NewMemRoomStore(&roompool.Room{ID: "room-1", Status: roompool.StatusAvailable})
	chat := &FakeChat{}
	pool := roompool.New(rooms, chat)

	sched := schedule.New()
	t.Cleanup(sched.Close)

	limits := tradefsm.Limits{
		MinTradeAmount: decimal.NewFromInt(1),
		MaxTradeAmount: decimal.NewFromInt(100000),
	}

	manager := tradefsm.NewManager(
		store, gateway, registry, pool, sched, chat, nil,
		limits, decimal.NewFromFloat(0.25),
	)

	return &Harness{
		T: t, DB: db, Store: store, Driver: driver, Rooms: rooms,
		Chat: chat, Gateway: gateway, Manager: manager,
	}
}

// DriveThroughWizard runs an escrow through every wizard step up to (but
// not including) Approve, the fixed onboarding sequence nearly every
// lifecycle scenario starts with.
func (h *Harness) DriveThroughWizard(id string) {
	h.T.Helper()
	require.NoError(h.T, h.Manager.SetRoles(id, "buyer-1", "buyer", "seller-1", "seller"))
	require.NoError(h.T, h.Manager.SetAmount(id, decimal.NewFromInt(100)))
	require.NoError(h.T, h.Manager.SetRate(id, decimal.NewFromFloat(1.0)))
	require.NoError(h.T, h.Manager.SetPayment(id, "bank transfer"))
	require.NoError(h.T, h.Manager.SetChainCoin(id, "BEP20", chain.USDT))
	require.NoError(h.T, h.Manager.SetBuyerAddress(id, "0x111111111111111111111111111111111111111a"))
	require.NoError(h.T, h.Manager.SetSellerAddress(id, "0x222222222222222222222222222222222222222b"))
}

// NewDraft creates a fresh escrow draft and drives it through the wizard,
// returning the escrow ID ready for Approve.
func (h *Harness) NewDraft(creatorID, groupID, originChatID string) string {
	h.T.Helper()
	e, err := h.Manager.CreateDraft(creatorID, groupID, originChatID)
	require.NoError(h.T, err)
	h.DriveThroughWizard(e.EscrowID)
	return e.EscrowID
}

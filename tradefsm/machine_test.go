package tradefsm

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
	"github.com/p2pmmx/escrowd/depositwatcher"
	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/roompool"
	"github.com/p2pmmx/escrowd/schedule"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

type fakeDriver struct {
	mu        sync.Mutex
	released  []string
	refunded  []string
	transfers []chain.Transfer
}

func (f *fakeDriver) ReleaseFunds(ctx context.Context, vault, to string, amt decimal.Decimal, override *big.Int) (*chain.ReleaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, to)
	return &chain.ReleaseResult{TransactionHash: "0xrelease"}, nil
}
func (f *fakeDriver) RefundFunds(ctx context.Context, vault, to string, amt decimal.Decimal, override *big.Int) (*chain.ReleaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunded = append(f.refunded, to)
	return &chain.ReleaseResult{TransactionHash: "0xrefund"}, nil
}
func (f *fakeDriver) WithdrawToken(ctx context.Context, vault, erc20, to string) (*chain.ReleaseResult, error) {
	return nil, nil
}
func (f *fakeDriver) GetTokenBalance(ctx context.Context, erc20, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (f *fakeDriver) GetTokenTransfersViaRPC(ctx context.Context, erc20, to string, fromBlock uint64) ([]chain.Transfer, error) {
	return f.transfers, nil
}
func (f *fakeDriver) GetLatestBlockNumber(ctx context.Context) (uint64, error) { return 1, nil }
func (f *fakeDriver) GetFeeSettings(ctx context.Context, vault string) (*chain.FeeSettings, error) {
	return nil, nil
}

type memRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*roompool.Room
}

func newMemRoomStore(rooms ...*roompool.Room) *memRoomStore {
	m := &memRoomStore{rooms: make(map[string]*roompool.Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memRoomStore) ListAvailable(ctx context.Context) ([]*roompool.Room, error) {
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

func (m *memRoomStore) CASAssign(ctx context.Context, roomID, escrowID string, now time.Time) (bool, error) {
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

func (m *memRoomStore) Get(ctx context.Context, roomID string) (*roompool.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rooms[roomID]
	cp := *r
	return &cp, nil
}

func (m *memRoomStore) Update(ctx context.Context, room *roompool.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

type fakeChat struct{}

func (f *fakeChat) SendText(ctx context.Context, roomID, text string, buttons []chatadapter.Button) (string, error) {
	return "", nil
}
func (f *fakeChat) SendPhoto(ctx context.Context, roomID, imageRef, caption string, buttons []chatadapter.Button) (string, error) {
	return "", nil
}
func (f *fakeChat) EditText(ctx context.Context, roomID, messageID, text string, buttons []chatadapter.Button) error {
	return nil
}
func (f *fakeChat) EditCaption(ctx context.Context, roomID, messageID, caption string, buttons []chatadapter.Button) error {
	return nil
}
func (f *fakeChat) DeleteMessage(ctx context.Context, roomID, messageID string) error { return nil }
func (f *fakeChat) PinMessage(ctx context.Context, roomID, messageID string) error    { return nil }
func (f *fakeChat) UnpinMessage(ctx context.Context, roomID, messageID string) error  { return nil }
func (f *fakeChat) ApproveJoin(ctx context.Context, roomID, userID string) error      { return nil }
func (f *fakeChat) DeclineJoin(ctx context.Context, roomID, userID string) error      { return nil }
func (f *fakeChat) Kick(ctx context.Context, roomID, userID string) error             { return nil }
func (f *fakeChat) RevokeInviteLink(ctx context.Context, roomID string) error         { return nil }
func (f *fakeChat) CreateInviteLink(ctx context.Context, roomID string) (string, error) {
	return "invite-link", nil
}

func newTestManager(t *testing.T, driver chain.Driver) (*Manager, *Store) {
	t.Helper()
	db, err := escrowdb.Open(filepath.Join(t.TempDir(), "escrow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)

	decimals := chain.DecimalsTable{
		{Token: chain.USDT, Chain: chain.BSC}: 18,
	}
	gw := chain.NewGateway(map[chain.Chain]chain.Driver{chain.BSC: driver}, decimals)

	reg := vaultregistry.New()
	require.NoError(t, reg.Reload([]*vaultregistry.Contract{
		{
			Name: "EscrowVault", Token: chain.USDT, Chain: chain.BSC,
			Address: "0xvault000000000000000000000000000000000",
			FeePercent: decimal.NewFromFloat(0.25), FeeBasisPoints: 25,
			Status: vaultregistry.StatusDeployed,
		},
	}))

	roomStore := newMemRoomStore(&roompool.Room{ID: "room-1", Status: roompool.StatusAvailable})
	pool := roompool.New(roomStore, &fakeChat{})

	sched := schedule.New()
	t.Cleanup(sched.Close)

	limits := Limits{MinTradeAmount: decimal.NewFromInt(1), MaxTradeAmount: decimal.NewFromInt(100000)}

	m := NewManager(store, gw, reg, pool, sched, &fakeChat{}, nil, limits, decimal.NewFromFloat(0.25))
	return m, store
}

func driveThroughWizard(t *testing.T, m *Manager, id string) {
	t.Helper()
	require.NoError(t, m.SetRoles(id, "buyer-1", "buyer", "seller-1", "seller"))
	require.NoError(t, m.SetAmount(id, decimal.NewFromInt(100)))
	require.NoError(t, m.SetRate(id, decimal.NewFromFloat(1.0)))
	require.NoError(t, m.SetPayment(id, "bank transfer"))
	require.NoError(t, m.SetChainCoin(id, "BEP20", chain.USDT))
	require.NoError(t, m.SetBuyerAddress(id, "0x111111111111111111111111111111111111111a"))
	require.NoError(t, m.SetSellerAddress(id, "0x222222222222222222222222222222222222222b"))
}

func TestHappyPathToRelease(t *testing.T) {
	driver := &fakeDriver{}
	m, store := newTestManager(t, driver)
	ctx := context.Background()

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)

	driveThroughWizard(t, m, e.EscrowID)
	require.NoError(t, m.Approve(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.Approve(ctx, e.EscrowID, "seller-1"))

	got, err := store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingDeposit, got.Status)
	require.Equal(t, "room-1", got.GroupID)
	require.NotEmpty(t, got.DepositAddress)

	full := decimal.NewFromInt(100).Shift(18).BigInt()
	require.NoError(t, m.HandleDeposit(depositwatcher.Deposit{
		EscrowID: e.EscrowID,
		Transfer: chain.Transfer{TxHash: "0xabc", To: got.DepositAddress, ValueBase: full, BlockNumber: 5},
	}))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusDeposited, got.Status)

	require.NoError(t, m.MarkFiatSent(e.EscrowID))
	require.NoError(t, m.MarkFiatReceived(e.EscrowID))

	require.NoError(t, m.ConfirmRelease(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.ConfirmRelease(ctx, e.EscrowID, "seller-1"))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, "0xrelease", got.ReleaseTransactionHash)
	require.Len(t, driver.released, 1)
}

func TestPartialDepositStaysAwaitingDeposit(t *testing.T) {
	driver := &fakeDriver{}
	m, store := newTestManager(t, driver)
	ctx := context.Background()

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)
	driveThroughWizard(t, m, e.EscrowID)
	require.NoError(t, m.Approve(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.Approve(ctx, e.EscrowID, "seller-1"))

	got, err := store.Load(e.EscrowID)
	require.NoError(t, err)

	half := decimal.NewFromInt(50).Shift(18).BigInt()
	require.NoError(t, m.HandleDeposit(depositwatcher.Deposit{
		EscrowID: e.EscrowID,
		Transfer: chain.Transfer{TxHash: "0xhalf", To: got.DepositAddress, ValueBase: half, BlockNumber: 5},
	}))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingDeposit, got.Status)
	require.True(t, got.AwaitingPartialDecision)

	remaining, err := got.RemainingToExpected(chain.DecimalsTable{{Token: chain.USDT, Chain: chain.BSC}: 18})
	require.NoError(t, err)
	require.True(t, remaining.Equal(decimal.NewFromInt(50)))
}

func TestCancelBeforeDepositSkipsChainCall(t *testing.T) {
	driver := &fakeDriver{}
	m, _ := newTestManager(t, driver)

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)
	require.NoError(t, m.Cancel(e.EscrowID, "changed their mind"))
	require.Empty(t, driver.released)
	require.Empty(t, driver.refunded)
}

func TestContinueWithPartialSnapsQuantityAndAdvances(t *testing.T) {
	driver := &fakeDriver{}
	m, store := newTestManager(t, driver)
	ctx := context.Background()

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)
	driveThroughWizard(t, m, e.EscrowID)
	require.NoError(t, m.Approve(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.Approve(ctx, e.EscrowID, "seller-1"))

	got, err := store.Load(e.EscrowID)
	require.NoError(t, err)

	sixty := decimal.NewFromInt(60).Shift(18).BigInt()
	require.NoError(t, m.HandleDeposit(depositwatcher.Deposit{
		EscrowID: e.EscrowID,
		Transfer: chain.Transfer{TxHash: "0x60", To: got.DepositAddress, ValueBase: sixty, BlockNumber: 5},
	}))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.True(t, got.AwaitingPartialDecision)

	require.ErrorContains(t, m.ContinueWithPartial(e.EscrowID, "buyer-1"), "not the seller")

	require.NoError(t, m.ContinueWithPartial(e.EscrowID, "seller-1"))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusDeposited, got.Status)
	require.False(t, got.AwaitingPartialDecision)
	require.True(t, got.Quantity.Equal(decimal.NewFromInt(60)))

	require.NoError(t, m.MarkFiatSent(e.EscrowID))
	require.NoError(t, m.MarkFiatReceived(e.EscrowID))
	require.NoError(t, m.ConfirmRelease(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.ConfirmRelease(ctx, e.EscrowID, "seller-1"))
	require.Len(t, driver.released, 1)
}

func TestPayRemainingStaysAwaitingDepositAndKeepsAccumulating(t *testing.T) {
	driver := &fakeDriver{}
	m, store := newTestManager(t, driver)
	ctx := context.Background()

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)
	driveThroughWizard(t, m, e.EscrowID)
	require.NoError(t, m.Approve(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.Approve(ctx, e.EscrowID, "seller-1"))

	got, err := store.Load(e.EscrowID)
	require.NoError(t, err)

	sixty := decimal.NewFromInt(60).Shift(18).BigInt()
	require.NoError(t, m.HandleDeposit(depositwatcher.Deposit{
		EscrowID: e.EscrowID,
		Transfer: chain.Transfer{TxHash: "0x60", To: got.DepositAddress, ValueBase: sixty, BlockNumber: 5},
	}))

	require.ErrorContains(t, m.PayRemaining(e.EscrowID, "buyer-1"), "not the seller")
	require.NoError(t, m.PayRemaining(e.EscrowID, "seller-1"))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingDeposit, got.Status)
	require.False(t, got.AwaitingPartialDecision)

	forty := decimal.NewFromInt(40).Shift(18).BigInt()
	require.NoError(t, m.HandleDeposit(depositwatcher.Deposit{
		EscrowID: e.EscrowID,
		Transfer: chain.Transfer{TxHash: "0x40", To: got.DepositAddress, ValueBase: forty, BlockNumber: 6},
	}))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusDeposited, got.Status)
	require.True(t, got.Quantity.Equal(decimal.NewFromInt(100)))
}

func TestCloseTradeRequiresCompletionAndAnyPartySuffices(t *testing.T) {
	driver := &fakeDriver{}
	m, store := newTestManager(t, driver)
	ctx := context.Background()

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)
	driveThroughWizard(t, m, e.EscrowID)

	require.ErrorContains(t, m.CloseTrade(e.EscrowID, "buyer-1", false), "not completed")

	require.NoError(t, m.Approve(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.Approve(ctx, e.EscrowID, "seller-1"))

	got, err := store.Load(e.EscrowID)
	require.NoError(t, err)
	full := decimal.NewFromInt(100).Shift(18).BigInt()
	require.NoError(t, m.HandleDeposit(depositwatcher.Deposit{
		EscrowID: e.EscrowID,
		Transfer: chain.Transfer{TxHash: "0xabc", To: got.DepositAddress, ValueBase: full, BlockNumber: 5},
	}))
	require.NoError(t, m.MarkFiatSent(e.EscrowID))
	require.NoError(t, m.MarkFiatReceived(e.EscrowID))
	require.NoError(t, m.ConfirmRelease(ctx, e.EscrowID, "buyer-1"))
	require.NoError(t, m.ConfirmRelease(ctx, e.EscrowID, "seller-1"))

	require.ErrorContains(t, m.CloseTrade(e.EscrowID, "stranger", false), "not a party")
	require.NoError(t, m.CloseTrade(e.EscrowID, "seller-1", false))

	got, err = store.Load(e.EscrowID)
	require.NoError(t, err)
	require.True(t, got.SellerClosedTrade)
	require.False(t, got.BuyerClosedTrade)
}

func TestJoinTimeoutFireCancelsDraft(t *testing.T) {
	driver := &fakeDriver{}
	m, store := newTestManager(t, driver)
	ctx := context.Background()

	e, err := m.CreateDraft("buyer-1", "", "chat-1")
	require.NoError(t, err)

	require.NoError(t, m.HandleTimerFire(ctx, schedule.Fire{EscrowID: e.EscrowID, Kind: schedule.KindJoinTimeout}))

	got, err := store.Load(e.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
}

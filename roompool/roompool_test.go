package roompool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/p2pmmx/escrowd/chatadapter"
	"github.com/p2pmmx/escrowd/escrowerr"
)

type memStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newMemStore(rooms ...*Room) *memStore {
	m := &memStore{rooms: make(map[string]*Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memStore) ListAvailable(ctx context.Context) ([]*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Room
	for _, r := range m.rooms {
		if r.Status == StatusAvailable {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CASAssign(ctx context.Context, roomID, escrowID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || r.Status != StatusAvailable {
		return false, nil
	}
	r.Status = StatusAssigned
	r.AssignedEscrowID = escrowID
	r.AssignedAt = now
	return true, nil
}

func (m *memStore) Get(ctx context.Context, roomID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, escrowerr.NotFoundf("room %s", roomID)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Update(ctx context.Context, room *Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

type fakeChat struct {
	mu          sync.Mutex
	kicked      []string
	failKickFor map[string]bool
	linkSeq     int
}

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

func (f *fakeChat) Kick(ctx context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKickFor[userID] {
		return errNotFound
	}
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeChat) RevokeInviteLink(ctx context.Context, roomID string) error { return nil }

func (f *fakeChat) CreateInviteLink(ctx context.Context, roomID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkSeq++
	return "invite-link", nil
}

var errNotFound = escrowerr.Internalf(nil, "kick failed")

func pt25() decimal.Decimal { return decimal.NewFromFloat(0.25) }

func TestAssignRoomPrefersPinnedTier(t *testing.T) {
	fee := pt25()
	store := newMemStore(
		&Room{ID: "unpinned", Status: StatusAvailable},
		&Room{ID: "pinned", Status: StatusAvailable, PinnedFeePercent: &fee},
	)
	pool := New(store, &fakeChat{})

	room, err := pool.AssignRoom(context.Background(), "escrow-1", fee)
	require.NoError(t, err)
	require.Equal(t, "pinned", room.ID)
	require.Equal(t, StatusAssigned, room.Status)
}

func TestAssignRoomExhausted(t *testing.T) {
	store := newMemStore()
	pool := New(store, &fakeChat{})

	_, err := pool.AssignRoom(context.Background(), "escrow-1", pt25())
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.ResourceExhausted))
}

func TestRecycleQuarantinesOnPartialKickFailure(t *testing.T) {
	room := &Room{ID: "room-1", Status: StatusAssigned, AssignedEscrowID: "escrow-1"}
	store := newMemStore(room)
	chat := &fakeChat{failKickFor: map[string]bool{"seller": true}}
	pool := New(store, chat)

	err := pool.Recycle(context.Background(), room, []string{"buyer", "seller"})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "room-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
}

func TestRecycleReturnsRoomToAvailablePool(t *testing.T) {
	room := &Room{ID: "room-1", Status: StatusAssigned, AssignedEscrowID: "escrow-1", InviteLink: "old-link"}
	store := newMemStore(room)
	chat := &fakeChat{}
	pool := New(store, chat)

	err := pool.Recycle(context.Background(), room, []string{"buyer", "seller"})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "room-1")
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, got.Status)
	require.Equal(t, "", got.AssignedEscrowID)
	require.NotEmpty(t, got.InviteLink)
}

func TestApproveJoinRejectsUnknownUser(t *testing.T) {
	room := &Room{ID: "room-1", Status: StatusAssigned}
	pool := New(newMemStore(room), &fakeChat{})

	err := pool.ApproveJoin(context.Background(), room, "stranger", []string{"buyer", "seller"})
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.Unauthorized))
}

// Package roompool implements the Group/Room Pool Manager (C3): leasing
// pre-provisioned private chat rooms to trades under a fee tier,
// revoking/minting invite links, and removing members on recycle. Room
// assignment is the one cross-escrow synchronization point in the system
// (spec §5): it is an atomic compare-and-swap on a Room row, mirroring
// watchtower's accept-or-reject-a-lease idiom generalized from towers to
// rooms.
package roompool

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chatadapter"
	"github.com/p2pmmx/escrowd/escrowerr"
)

// Status is the lifecycle state of a pooled room.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAssigned  Status = "assigned"
	// StatusCompleted is the quarantine state: a room whose
	// removeAllUsers failed on recycle lands here for manual
	// intervention rather than being handed out again dirty.
	StatusCompleted Status = "completed"
)

// Room is a single pooled chat room row.
type Room struct {
	ID               string
	InviteLink       string
	Status           Status
	AssignedEscrowID string
	AssignedAt       time.Time

	// PinnedFeePercent, when non-nil, restricts this room to trades at
	// exactly that fee tier. A nil value means the room serves any tier.
	PinnedFeePercent *decimal.Decimal
}

// matchesTier reports whether this room may serve a trade at the given
// fee percent: an unpinned room serves any tier, a pinned room only its
// own.
func (r *Room) matchesTier(feePercent decimal.Decimal) bool {
	if r.PinnedFeePercent == nil {
		return true
	}
	return r.PinnedFeePercent.Equal(feePercent)
}

// Store is the persistence seam roompool mutates through. The real
// implementation lives in escrowdb; CASAssign is the one method that must
// be a genuine atomic conditional write, since it is the system's only
// cross-escrow synchronization point.
type Store interface {
	ListAvailable(ctx context.Context) ([]*Room, error)

	// CASAssign transitions roomID from available to assigned iff it is
	// still available when the write lands. ok is false, with no error,
	// when another caller won the race first.
	CASAssign(ctx context.Context, roomID, escrowID string, now time.Time) (ok bool, err error)

	Get(ctx context.Context, roomID string) (*Room, error)
	Update(ctx context.Context, room *Room) error
}

// Pool manages the room lifecycle on top of a Store and a chat Adapter.
type Pool struct {
	store Store
	chat  chatadapter.Adapter
}

// New constructs a Pool.
func New(store Store, chat chatadapter.Adapter) *Pool {
	return &Pool{store: store, chat: chat}
}

// Store exposes the underlying Store, used by callers (tradefsm's
// recycle-on-timer path) that need a room row the Pool itself has no
// lookup-by-ID method for beyond what Store already provides.
func (p *Pool) Store() Store { return p.store }

// AssignRoom atomically marks an available room assigned, preferring
// rooms pinned to requiredFeePercent over unpinned ones. Candidates are
// tried in preference order until one wins its CAS; this tolerates losing
// a race to a concurrent assignRoom call without retrying the whole scan
// from empty-handed.
func (p *Pool) AssignRoom(ctx context.Context, escrowID string, requiredFeePercent decimal.Decimal) (*Room, error) {
	candidates, err := p.store.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	ordered := orderByTierPreference(candidates, requiredFeePercent)
	now := time.Now()

	for _, candidate := range ordered {
		ok, err := p.store.CASAssign(ctx, candidate.ID, escrowID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		room, err := p.store.Get(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		return room, nil
	}

	log.Warnf("no room available for escrow %s at fee tier %s", escrowID, requiredFeePercent)
	return nil, escrowerr.ResourceExhaustedf("ROOMS_EXHAUSTED: no room available for fee tier %s", requiredFeePercent)
}

// orderByTierPreference sorts pinned-tier-matching rooms ahead of
// unpinned rooms, preserving the store's original order within each
// group.
func orderByTierPreference(rooms []*Room, requiredFeePercent decimal.Decimal) []*Room {
	pinned := make([]*Room, 0, len(rooms))
	rest := make([]*Room, 0, len(rooms))
	for _, r := range rooms {
		if r.PinnedFeePercent != nil && r.matchesTier(requiredFeePercent) {
			pinned = append(pinned, r)
			continue
		}
		if r.PinnedFeePercent == nil {
			rest = append(rest, r)
		}
	}
	return append(pinned, rest...)
}

// RefreshInviteLink revokes room's current invite link and mints a new
// one requiring join approval. The room's underlying identity is reused;
// only the link is ephemeral.
func (p *Pool) RefreshInviteLink(ctx context.Context, room *Room) (string, error) {
	if room.InviteLink != "" {
		if err := p.chat.RevokeInviteLink(ctx, room.ID); err != nil {
			return "", err
		}
	}
	link, err := p.chat.CreateInviteLink(ctx, room.ID)
	if err != nil {
		return "", err
	}
	room.InviteLink = link
	if err := p.store.Update(ctx, room); err != nil {
		return "", err
	}
	return link, nil
}

// ApproveJoin approves userID's pending join request iff they are on the
// escrow's allowlist. Declining unknown requests is the caller's
// responsibility via DeclineJoin; this method never silently allows an
// unlisted user.
func (p *Pool) ApproveJoin(ctx context.Context, room *Room, userID string, allowedUserIDs []string) error {
	if !contains(allowedUserIDs, userID) {
		return escrowerr.Unauthorizedf("user %s is not on the allowlist for room %s", userID, room.ID)
	}
	return p.chat.ApproveJoin(ctx, room.ID, userID)
}

// DeclineJoin declines userID's pending join request. Declining is always
// permitted; it is the default action for anyone not recognized.
func (p *Pool) DeclineJoin(ctx context.Context, room *Room, userID string) error {
	return p.chat.DeclineJoin(ctx, room.ID, userID)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

// RemoveAllUsers kicks every participant from room, returning whether all
// were removed cleanly. A partial failure is reported, not retried here;
// the caller (Recycle) decides what a partial failure means for the
// room's next state.
func (p *Pool) RemoveAllUsers(ctx context.Context, room *Room, participantIDs []string) bool {
	allRemoved := true
	for _, userID := range participantIDs {
		if err := p.chat.Kick(ctx, room.ID, userID); err != nil {
			allRemoved = false
		}
	}
	return allRemoved
}

// Recycle returns room to the pool after a successful release or refund
// plus the grace delay the scheduler enforces before calling this. If
// removing every participant fails, the room is quarantined as
// StatusCompleted instead of being handed out dirty.
func (p *Pool) Recycle(ctx context.Context, room *Room, participantIDs []string) error {
	clean := p.RemoveAllUsers(ctx, room, participantIDs)
	if !clean {
		room.Status = StatusCompleted
		room.AssignedEscrowID = ""
		return p.store.Update(ctx, room)
	}

	room.Status = StatusAvailable
	room.AssignedEscrowID = ""
	_, err := p.RefreshInviteLink(ctx, room)
	return err
}

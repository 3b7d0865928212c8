package roompool

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/escrowerr"
)

// DBStore implements Store atop escrowdb, the production collaborator
// Pool is constructed with outside of tests.
type DBStore struct {
	db *escrowdb.DB
}

// NewDBStore wraps db for roompool's use.
func NewDBStore(db *escrowdb.DB) *DBStore {
	return &DBStore{db: db}
}

func encodeRoom(r *Room) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, escrowerr.Internalf(err, "encode room %s", r.ID)
	}
	return buf.Bytes(), nil
}

func decodeRoom(data []byte) (*Room, error) {
	var r Room
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, escrowerr.Internalf(err, "decode room")
	}
	return &r, nil
}

// ListAvailable returns every room currently filed under
// StatusAvailable, decoded, in the order escrowdb's status index yields
// them.
func (s *DBStore) ListAvailable(ctx context.Context) ([]*Room, error) {
	ids, err := s.db.ListRoomIDsByStatus(string(StatusAvailable))
	if err != nil {
		return nil, err
	}
	out := make([]*Room, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// CASAssign transitions roomID from available to assigned inside one
// escrowdb transaction (escrowdb.CASRoom), the real implementation of
// the system's one cross-escrow synchronization point. ok is false, with
// no error, when the room was not available by the time the write
// lands — another caller won the race, and the Pool tries the next
// candidate rather than retrying this one.
func (s *DBStore) CASAssign(ctx context.Context, roomID, escrowID string, now time.Time) (bool, error) {
	return s.db.CASRoom(roomID, func(current []byte) ([]byte, string, bool, error) {
		if current == nil {
			return nil, "", false, nil
		}
		r, err := decodeRoom(current)
		if err != nil {
			return nil, "", false, err
		}
		if r.Status != StatusAvailable {
			return nil, "", false, nil
		}
		r.Status = StatusAssigned
		r.AssignedEscrowID = escrowID
		r.AssignedAt = now
		next, err := encodeRoom(r)
		if err != nil {
			return nil, "", false, err
		}
		return next, string(r.Status), true, nil
	})
}

// Get returns the stored room by ID.
func (s *DBStore) Get(ctx context.Context, roomID string) (*Room, error) {
	data, err := s.db.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return decodeRoom(data)
}

// Update overwrites room's stored row, maintaining escrowdb's status
// index.
func (s *DBStore) Update(ctx context.Context, room *Room) error {
	data, err := encodeRoom(room)
	if err != nil {
		return err
	}
	return s.db.PutRoom(room.ID, string(room.Status), data)
}

// ListAll returns every room regardless of status, for admin
// introspection (escrowrpc's ListRooms).
func (s *DBStore) ListAll() ([]*Room, error) {
	var out []*Room
	err := s.db.ForEachRoom(func(roomID string, data []byte) error {
		r, err := decodeRoom(data)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

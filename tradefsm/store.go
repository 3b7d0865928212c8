package tradefsm

import (
	"bytes"
	"encoding/gob"

	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/escrowerr"
)

// Store persists Escrow aggregates atop escrowdb, encoding each row with
// gob the same way every other state struct in this tree round-trips
// through a generic Go encoder rather than a hand-rolled wire format —
// there is no third-party struct codec in the dependency tree to reach
// for here, so this one ambient concern stays on the standard library.
type Store struct {
	db *escrowdb.DB
}

// NewStore wraps db for tradefsm's use.
func NewStore(db *escrowdb.DB) *Store {
	return &Store{db: db}
}

func encodeEscrow(e *Escrow) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, escrowerr.Internalf(err, "encode escrow %s", e.EscrowID)
	}
	return buf.Bytes(), nil
}

func decodeEscrow(data []byte) (*Escrow, error) {
	var e Escrow
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, escrowerr.Internalf(err, "decode escrow")
	}
	return &e, nil
}

// Save upserts e, maintaining escrowdb's group and status secondary
// indexes.
func (s *Store) Save(e *Escrow) error {
	data, err := encodeEscrow(e)
	if err != nil {
		return err
	}
	return s.db.PutEscrow(e.EscrowID, e.GroupID, string(e.Status), data)
}

// Load fetches one escrow by ID.
func (s *Store) Load(escrowID string) (*Escrow, error) {
	data, err := s.db.GetEscrow(escrowID)
	if err != nil {
		return nil, err
	}
	return decodeEscrow(data)
}

// LoadByGroup fetches the escrow pinned to a chat group, if any.
func (s *Store) LoadByGroup(groupID string) (*Escrow, error) {
	id, err := s.db.GetEscrowIDByGroup(groupID)
	if err != nil {
		return nil, err
	}
	return s.Load(id)
}

// ListByStatus returns every escrow currently filed under status.
func (s *Store) ListByStatus(status Status) ([]*Escrow, error) {
	ids, err := s.db.ListEscrowIDsByStatus(string(status))
	if err != nil {
		return nil, err
	}
	out := make([]*Escrow, 0, len(ids))
	for _, id := range ids {
		e, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListAll returns every escrow regardless of status, for admin
// introspection (escrowrpc's ListEscrows with no status filter).
func (s *Store) ListAll() ([]*Escrow, error) {
	var out []*Escrow
	err := s.db.ForEachEscrow(func(escrowID string, data []byte) error {
		e, err := decodeEscrow(data)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// NextEscrowID mints a sequential, operator-readable escrow identifier.
func (s *Store) NextEscrowID() (string, error) {
	n, err := s.db.NextCounter("escrow")
	if err != nil {
		return "", err
	}
	return formatCounterID("P2PMMX", 10000000+n), nil
}

func formatCounterID(prefix string, n uint64) string {
	digits := [20]byte{}
	i := len(digits)
	if n == 0 {
		i--
		digits[i] = '0'
	}
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return prefix + string(digits[i:])
}

// Package escrowdb implements the persistence layer (collections escrows,
// rooms, contracts, counters) atop btcwallet's walletdb, the same
// bucket-per-collection, transaction-per-mutation idiom channeldb layers
// over walletdb for channel state. Every exported method opens exactly
// one walletdb transaction, so a caller never holds a lock across a
// chain RPC or chat send — those suspend outside any transaction.
package escrowdb

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // registers the "bdb" driver

	"github.com/p2pmmx/escrowd/escrowerr"
)

var (
	escrowsBucketKey         = []byte("escrows")
	escrowsByGroupBucketKey  = []byte("escrows-by-group")
	escrowsByStatusBucketKey = []byte("escrows-by-status")
	roomsBucketKey           = []byte("rooms")
	roomsByStatusBucketKey   = []byte("rooms-by-status")
	contractsBucketKey       = []byte("contracts")
	countersBucketKey        = []byte("counters")
)

// DB wraps a walletdb.DB opened against the "bdb" (bolt) backend, the
// default walletdb driver registered above.
type DB struct {
	backing walletdb.DB
}

// Open creates or opens the database file at path, creating every
// top-level bucket the schema needs if this is a fresh file.
func Open(path string) (*DB, error) {
	backing, err := walletdb.Create("bdb", path, true, 60*time.Second)
	if err != nil {
		return nil, escrowerr.Internalf(err, "open escrow database at %s", path)
	}
	db := &DB{backing: backing}
	if err := db.createBuckets(); err != nil {
		backing.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) createBuckets() error {
	return d.backing.Update(func(tx walletdb.ReadWriteTx) error {
		for _, key := range [][]byte{
			escrowsBucketKey, escrowsByGroupBucketKey, escrowsByStatusBucketKey,
			roomsBucketKey, roomsByStatusBucketKey, contractsBucketKey, countersBucketKey,
		} {
			if _, err := tx.CreateTopLevelBucket(key); err != nil {
				return err
			}
		}
		return nil
	}, func() {})
}

// Close releases the underlying database file.
func (d *DB) Close() error {
	return d.backing.Close()
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := escrowerr.As(err); ok {
		return e
	}
	return escrowerr.Internalf(err, "escrow database operation failed")
}

// --- escrows ---------------------------------------------------------

// PutEscrow stores data under escrowID, maintains the unique groupID
// index (when groupID is non-empty) and the status secondary index. The
// caller owns data's encoding; escrowdb only moves bytes.
func (d *DB) PutEscrow(escrowID, groupID, status string, data []byte) error {
	err := d.backing.Update(func(tx walletdb.ReadWriteTx) error {
		escrows := tx.ReadWriteBucket(escrowsBucketKey)
		byGroup := tx.ReadWriteBucket(escrowsByGroupBucketKey)
		byStatus := tx.ReadWriteBucket(escrowsByStatusBucketKey)

		if err := removeFromStatusIndex(byStatus, []byte(escrowID)); err != nil {
			return err
		}
		if err := appendToStatusIndex(byStatus, []byte(status), []byte(escrowID)); err != nil {
			return err
		}
		if groupID != "" {
			if err := byGroup.Put([]byte(groupID), []byte(escrowID)); err != nil {
				return err
			}
		}
		return escrows.Put([]byte(escrowID), data)
	}, func() {})
	return wrapErr(err)
}

// GetEscrow returns the raw bytes stored under escrowID.
func (d *DB) GetEscrow(escrowID string) ([]byte, error) {
	var out []byte
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		escrows := tx.ReadBucket(escrowsBucketKey)
		v := escrows.Get([]byte(escrowID))
		if v == nil {
			return escrowerr.NotFoundf("no escrow %s", escrowID)
		}
		out = append(out, v...)
		return nil
	}, func() {})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// GetEscrowIDByGroup returns the escrow pinned to groupID, if any.
func (d *DB) GetEscrowIDByGroup(groupID string) (string, error) {
	var out string
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		byGroup := tx.ReadBucket(escrowsByGroupBucketKey)
		v := byGroup.Get([]byte(groupID))
		if v == nil {
			return escrowerr.NotFoundf("no escrow for group %s", groupID)
		}
		out = string(v)
		return nil
	}, func() {})
	if err != nil {
		return "", wrapErr(err)
	}
	return out, nil
}

// ListEscrowIDsByStatus returns every escrow ID currently filed under
// status, in the byte order of the IDs (the order the status bucket
// iterates its keys), not in insertion order.
func (d *DB) ListEscrowIDsByStatus(status string) ([]string, error) {
	var out []string
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		byStatus := tx.ReadBucket(escrowsByStatusBucketKey)
		statusBucket := byStatus.NestedReadBucket([]byte(status))
		if statusBucket == nil {
			return nil
		}
		return statusBucket.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	}, func() {})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// ForEachEscrow visits every stored escrow, regardless of status.
func (d *DB) ForEachEscrow(fn func(escrowID string, data []byte) error) error {
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		escrows := tx.ReadBucket(escrowsBucketKey)
		return escrows.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	}, func() {})
	return wrapErr(err)
}

// removeFromStatusIndex deletes escrowID from whichever status bucket it
// currently sits in. It scans every status sub-bucket rather than
// requiring the caller to know the prior status, trading a small lookup
// cost for not needing a second index just to find the first. Bucket
// entries surface through ForEach with a nil value, the same convention
// the underlying bolt store uses to distinguish a nested bucket from a
// plain key.
func removeFromStatusIndex(byStatus walletdb.ReadWriteBucket, escrowID []byte) error {
	var statuses [][]byte
	if err := byStatus.ForEach(func(k, v []byte) error {
		if v == nil {
			statuses = append(statuses, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, status := range statuses {
		sub := byStatus.NestedReadWriteBucket(status)
		if sub == nil {
			continue
		}
		if sub.Get(escrowID) != nil {
			if err := sub.Delete(escrowID); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendToStatusIndex(byStatus walletdb.ReadWriteBucket, status, escrowID []byte) error {
	nested := byStatus.NestedReadWriteBucket(status)
	if nested == nil {
		var err error
		nested, err = byStatus.CreateBucket(status)
		if err != nil {
			return err
		}
	}
	return nested.Put(escrowID, []byte{1})
}

// --- rooms -------------------------------------------------------------

// PutRoom stores data under roomID and maintains the status index.
func (d *DB) PutRoom(roomID, status string, data []byte) error {
	err := d.backing.Update(func(tx walletdb.ReadWriteTx) error {
		rooms := tx.ReadWriteBucket(roomsBucketKey)
		byStatus := tx.ReadWriteBucket(roomsByStatusBucketKey)

		if err := removeRoomFromStatusIndex(byStatus, []byte(roomID)); err != nil {
			return err
		}
		nested := byStatus.NestedReadWriteBucket([]byte(status))
		if nested == nil {
			var err error
			nested, err = byStatus.CreateBucket([]byte(status))
			if err != nil {
				return err
			}
		}
		if err := nested.Put([]byte(roomID), []byte{1}); err != nil {
			return err
		}
		return rooms.Put([]byte(roomID), data)
	}, func() {})
	return wrapErr(err)
}

func removeRoomFromStatusIndex(byStatus walletdb.ReadWriteBucket, roomID []byte) error {
	var statuses [][]byte
	if err := byStatus.ForEach(func(k, v []byte) error {
		if v == nil {
			statuses = append(statuses, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, status := range statuses {
		sub := byStatus.NestedReadWriteBucket(status)
		if sub == nil {
			continue
		}
		if sub.Get(roomID) != nil {
			if err := sub.Delete(roomID); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetRoom returns the raw bytes stored under roomID.
func (d *DB) GetRoom(roomID string) ([]byte, error) {
	var out []byte
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		rooms := tx.ReadBucket(roomsBucketKey)
		v := rooms.Get([]byte(roomID))
		if v == nil {
			return escrowerr.NotFoundf("no room %s", roomID)
		}
		out = append(out, v...)
		return nil
	}, func() {})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// ListRoomIDsByStatus returns every room ID currently filed under status.
func (d *DB) ListRoomIDsByStatus(status string) ([]string, error) {
	var out []string
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		byStatus := tx.ReadBucket(roomsByStatusBucketKey)
		sub := byStatus.NestedReadBucket([]byte(status))
		if sub == nil {
			return nil
		}
		return sub.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	}, func() {})
	if err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// CASRoom runs fn against roomID's current stored bytes (nil if no row
// exists yet) inside a single walletdb transaction. fn returns the bytes
// to write, the status to file them under, and whether to proceed at
// all; proceed=false aborts the transaction with no write, the building
// block roompool's atomic room assignment is built from — the system's
// one cross-escrow synchronization point needs a real check-then-write
// inside one transaction, not a separate Get followed by a separate Put.
func (d *DB) CASRoom(roomID string, fn func(current []byte) (next []byte, status string, proceed bool, err error)) (bool, error) {
	var proceeded bool
	txErr := d.backing.Update(func(tx walletdb.ReadWriteTx) error {
		rooms := tx.ReadWriteBucket(roomsBucketKey)
		byStatus := tx.ReadWriteBucket(roomsByStatusBucketKey)

		current := rooms.Get([]byte(roomID))
		next, status, proceed, err := fn(current)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
		proceeded = true

		if err := removeRoomFromStatusIndex(byStatus, []byte(roomID)); err != nil {
			return err
		}
		nested := byStatus.NestedReadWriteBucket([]byte(status))
		if nested == nil {
			nested, err = byStatus.CreateBucket([]byte(status))
			if err != nil {
				return err
			}
		}
		if err := nested.Put([]byte(roomID), []byte{1}); err != nil {
			return err
		}
		return rooms.Put([]byte(roomID), next)
	}, func() {})
	if txErr != nil {
		return false, wrapErr(txErr)
	}
	return proceeded, nil
}

// ForEachRoom visits every stored room, regardless of status.
func (d *DB) ForEachRoom(fn func(roomID string, data []byte) error) error {
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		rooms := tx.ReadBucket(roomsBucketKey)
		return rooms.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	}, func() {})
	return wrapErr(err)
}

// --- contracts -----------------------------------------------------------

// contractKey composes the registry's natural key (name, token, chain,
// feePercent, groupId) into a single bucket key.
func contractKey(name, token, chain, feePercent, groupID string) []byte {
	var buf bytes.Buffer
	for _, part := range []string{name, token, chain, feePercent, groupID} {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(part)))
		buf.Write(length[:])
		buf.WriteString(part)
	}
	return buf.Bytes()
}

// PutContract stores data under the composite contract key.
func (d *DB) PutContract(name, token, chain, feePercent, groupID string, data []byte) error {
	key := contractKey(name, token, chain, feePercent, groupID)
	err := d.backing.Update(func(tx walletdb.ReadWriteTx) error {
		contracts := tx.ReadWriteBucket(contractsBucketKey)
		return contracts.Put(key, data)
	}, func() {})
	return wrapErr(err)
}

// ForEachContract visits every stored contract row, used to reload
// vaultregistry's in-memory cache at startup.
func (d *DB) ForEachContract(fn func(data []byte) error) error {
	err := d.backing.View(func(tx walletdb.ReadTx) error {
		contracts := tx.ReadBucket(contractsBucketKey)
		return contracts.ForEach(func(_, v []byte) error {
			return fn(v)
		})
	}, func() {})
	return wrapErr(err)
}

// --- counters ------------------------------------------------------------

// NextCounter atomically increments and returns the named counter,
// backing sequential escrow/room ID generation.
func (d *DB) NextCounter(name string) (uint64, error) {
	var next uint64
	err := d.backing.Update(func(tx walletdb.ReadWriteTx) error {
		counters := tx.ReadWriteBucket(countersBucketKey)
		key := []byte(name)
		cur := counters.Get(key)
		var n uint64
		if cur != nil {
			n = binary.BigEndian.Uint64(cur)
		}
		n++
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], n)
		next = n
		return counters.Put(key, buf[:])
	}, func() {})
	if err != nil {
		return 0, wrapErr(err)
	}
	return next, nil
}

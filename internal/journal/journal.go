// Package journal persists solved block headers to a local bolt database
// so a restarted miner can report what it has found even if a submission
// was lost in flight.
package journal

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketSolved = []byte("solved")

// Entry is one solved block record.
type Entry struct {
	Hash      [32]byte `cbor:"1,keyasint"`
	Height    int64    `cbor:"2,keyasint"`
	Nonce     uint32   `cbor:"3,keyasint"`
	Time      uint32   `cbor:"4,keyasint"`
	Bits      uint32   `cbor:"5,keyasint"`
	FoundAt   int64    `cbor:"6,keyasint"`
	HeaderHex string   `cbor:"7,keyasint"`
}

// Journal is an append-only store of solved blocks, keyed by insertion
// order.
type Journal struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens or creates the journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSolved)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal bucket: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Record appends a solved block entry.
func (j *Journal) Record(e Entry) error {
	data, err := cbor.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSolved)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], data)
	})
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	j.logger.Debug("journaled solved block",
		zap.Int64("height", e.Height),
		zap.Uint32("nonce", e.Nonce),
	)
	return nil
}

// Entries returns all recorded entries in insertion order.
func (j *Journal) Entries() ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSolved).ForEach(func(_, v []byte) error {
			var e Entry
			if err := cbor.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode journal entry: %w", err)
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of recorded entries.
func (j *Journal) Count() int {
	var n int
	_ = j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketSolved).Stats().KeyN
		return nil
	})
	return n
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

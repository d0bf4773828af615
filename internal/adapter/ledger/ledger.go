// Package ledger remembers which SVG documents have already been layered so
// redelivered events can be acknowledged without rewriting the file.
package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.etcd.io/bbolt"
)

var bucketLayered = []byte("layered")

// Ledger records the digest of the bytes last written for each path.
type Ledger interface {
	Lookup(path string) (sum uint64, ok bool, err error)
	Record(path string, sum uint64) error
}

// Sum is the digest stored in the ledger.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// AlreadyLayered reports whether data is exactly what was last recorded for path.
func AlreadyLayered(l Ledger, path string, data []byte) (bool, error) {
	sum, ok, err := l.Lookup(path)
	if err != nil || !ok {
		return false, err
	}
	return sum == Sum(data), nil
}

// BoltLedger persists digests in a bbolt file.
type BoltLedger struct {
	db *bbolt.DB
}

// Open opens or creates the ledger file at path.
func Open(path string) (*BoltLedger, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLayered)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

func (l *BoltLedger) Lookup(path string) (uint64, bool, error) {
	var (
		sum uint64
		ok  bool
	)
	err := l.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLayered).Get([]byte(path))
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("ledger entry for %s: %d bytes", path, len(v))
		}
		sum, ok = binary.BigEndian.Uint64(v), true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return sum, ok, nil
}

func (l *BoltLedger) Record(path string, sum uint64) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], sum)
		return tx.Bucket(bucketLayered).Put([]byte(path), buf[:])
	})
}

// Forget removes the entry for path, if any.
func (l *BoltLedger) Forget(path string) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLayered).Delete([]byte(path))
	})
}

func (l *BoltLedger) Close() error {
	return l.db.Close()
}

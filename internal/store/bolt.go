package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/iurnickita/pixrecon/internal/errs"
)

// Ledger in a single BoltDB file: one bucket per table, keyed by the
// big-endian row number, values are JSON-encoded rows.
type boltBackend struct {
	db *bolt.DB
}

func NewBolt(path string) (Backend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errs.Mark(errs.Wrapf(err, "open bolt ledger %s", path), ErrUnavailable)
	}
	return &boltBackend{db: db}, nil
}

func rowID(n int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func (s *boltBackend) Read(_ context.Context, key Key) ([]Row, error) {
	var rows []Row

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(rowID(key.first())); k != nil; k, v = c.Next() {
			n := int(binary.BigEndian.Uint64(k))
			if !key.contains(n) {
				break
			}
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, s.mark(err, "read "+key.String())
	}
	return rows, nil
}

func (s *boltBackend) Write(_ context.Context, key Key, rows []Row) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Table))
		if err != nil {
			return err
		}
		for i, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := b.Put(rowID(key.first()+i), data); err != nil {
				return err
			}
		}
		return nil
	})
	return s.mark(err, "write "+key.String())
}

func (s *boltBackend) Append(_ context.Context, key Key, rows []Row) (int, error) {
	first := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Table))
		if err != nil {
			return err
		}
		last := 0
		if k, _ := b.Cursor().Last(); k != nil {
			last = int(binary.BigEndian.Uint64(k))
		}
		first = last + 1
		for i, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := b.Put(rowID(first+i), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, s.mark(err, "append "+key.Table)
	}
	return first, nil
}

func (s *boltBackend) Close() error {
	return s.db.Close()
}

func (s *boltBackend) mark(err error, op string) error {
	if err == nil {
		return nil
	}
	err = errs.Wrap(err, op)
	if errs.Is(err, bolt.ErrTimeout) || errs.Is(err, bolt.ErrDatabaseNotOpen) {
		return errs.Mark(err, ErrUnavailable)
	}
	return err
}

package kv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Delimiter is the reserved byte that separates segments of a composite key
// within one partition. Callers must not place it in a key segment.
const Delimiter = 0x00

// ErrReservedByte is returned when a caller-supplied key segment contains
// the reserved delimiter.
var ErrReservedByte = fmt.Errorf("kv: key segment contains reserved delimiter byte 0x00")

// ValidateSegment rejects key segments that contain the reserved delimiter.
func ValidateSegment(segment string) error {
	if bytes.IndexByte([]byte(segment), Delimiter) >= 0 {
		return ErrReservedByte
	}
	return nil
}

// DB opens the bbolt-backed ordered KV store.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at dataDir/dwn.db.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create data dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dataDir, "dwn.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: open: %w", err)
	}
	return &DB{bolt: db}, nil
}

// Close closes the underlying bbolt file.
func (d *DB) Close() error { return d.bolt.Close() }

// Partition returns a top-level named partition, creating its backing
// bucket if absent.
func (d *DB) Partition(name string) (*Partition, error) {
	if err := ValidateSegment(name); err != nil {
		return nil, err
	}
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kv: create partition %q: %w", name, err)
	}
	return &Partition{db: d.bolt, path: [][]byte{[]byte(name)}}, nil
}

// Clear removes every key in every bucket under the given top-level
// partition name (used by tests to reset state between scenarios).
func (d *DB) Clear(name string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
}

// Partition is a logically disjoint sub-keyspace backed by a (possibly
// nested) bbolt bucket.
type Partition struct {
	db   *bolt.DB
	path [][]byte
}

func (p *Partition) openBucket(tx *bolt.Tx) *bolt.Bucket {
	b := tx.Bucket(p.path[0])
	for _, seg := range p.path[1:] {
		if b == nil {
			return nil
		}
		b = b.Bucket(seg)
	}
	return b
}

// Partition returns a nested sub-partition, creating its bucket if absent.
func (p *Partition) Partition(name string) (*Partition, error) {
	if err := ValidateSegment(name); err != nil {
		return nil, err
	}
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return fmt.Errorf("kv: parent partition missing")
		}
		_, err := b.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kv: create sub-partition %q: %w", name, err)
	}
	path := make([][]byte, len(p.path)+1)
	copy(path, p.path)
	path[len(p.path)] = []byte(name)
	return &Partition{db: p.db, path: path}, nil
}

// Get returns the value for key, and false if absent.
func (p *Partition) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := p.db.View(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	return value, found, err
}

// Put writes key=value atomically.
func (p *Partition) Put(key, value []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return fmt.Errorf("kv: partition missing")
		}
		return b.Put(key, value)
	})
}

// Delete removes key. Deleting an absent key is a no-op.
func (p *Partition) Delete(key []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// Op is one write in a Batch.
type Op struct {
	Key    []byte
	Value  []byte // ignored when Delete is set
	Delete bool
}

// PutOp builds a write Op.
func PutOp(key, value []byte) Op { return Op{Key: key, Value: value} }

// DeleteOp builds a delete Op.
func DeleteOp(key []byte) Op { return Op{Key: key, Delete: true} }

// Batch applies every Op atomically in a single bbolt transaction — the
// concurrency unit the spec requires for one record operation's combined
// message-store + tag-index writes (spec.md §5).
func (p *Partition) Batch(ops []Op) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return fmt.Errorf("kv: partition missing")
		}
		for _, op := range ops {
			if op.Delete {
				if err := b.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := b.Put(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// PartitionOps is one partition's share of a CrossBatch: every Op in Ops is
// applied against Partition's bucket.
type PartitionOps struct {
	Partition *Partition
	Ops       []Op
}

// CrossBatch applies operations against several (possibly nested, possibly
// sibling) partitions of the same DB in a single bbolt transaction — the
// unit a record write needs when it touches the message store, the tag
// index, and the event log together (spec.md §5).
func (d *DB) CrossBatch(groups ...PartitionOps) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		for _, g := range groups {
			b := g.Partition.openBucket(tx)
			if b == nil {
				return fmt.Errorf("kv: partition missing")
			}
			for _, op := range g.Ops {
				if op.Delete {
					if err := b.Delete(op.Key); err != nil {
						return err
					}
					continue
				}
				if err := b.Put(op.Key, op.Value); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Entry is one key/value pair yielded by iteration.
type Entry struct {
	Key   []byte
	Value []byte
}

// Range scans [start, end) (end exclusive; nil end means "to the end of the
// partition"), or reversed from end down to start when reverse is true.
// fn returning false stops the scan early.
func (p *Partition) Range(start, end []byte, reverse bool, fn func(Entry) bool) error {
	return p.db.View(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		if !reverse {
			var k, v []byte
			if start == nil {
				k, v = c.First()
			} else {
				k, v = c.Seek(start)
			}
			for ; k != nil; k, v = c.Next() {
				if end != nil && bytes.Compare(k, end) >= 0 {
					break
				}
				if !fn(Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}) {
					break
				}
			}
			return nil
		}
		// Reverse: seek to just past `end` (or the last key) and walk backward.
		var k, v []byte
		if end == nil {
			k, v = c.Last()
		} else {
			k, v = c.Seek(end)
			if k == nil {
				k, v = c.Last()
			} else if bytes.Compare(k, end) >= 0 {
				k, v = c.Prev()
			}
		}
		for ; k != nil; k, v = c.Prev() {
			if start != nil && bytes.Compare(k, start) < 0 {
				break
			}
			if !fn(Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}) {
				break
			}
		}
		return nil
	})
}

// Prefix scans every key sharing the given prefix, in forward order.
func (p *Partition) Prefix(prefix []byte, fn func(Entry) bool) error {
	return p.db.View(func(tx *bolt.Tx) error {
		b := p.openBucket(tx)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !fn(Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}) {
				break
			}
		}
		return nil
	})
}

// ForEach scans every entry in the partition.
func (p *Partition) ForEach(fn func(Entry) bool) error {
	return p.Range(nil, nil, false, fn)
}

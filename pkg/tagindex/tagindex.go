package tagindex

import (
	"fmt"
	"sync"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/indexenc"
	"github.com/cuemby/dwn/pkg/kv"
)

// Match is one query hit: the record whose current state matched, and the
// watermark of the RecordsWrite that produced that state.
type Match = indexenc.Entry

// Index is the tenant-partitioned current-record tag index.
type Index struct {
	root *kv.Partition

	mu      sync.Mutex
	tenants map[string]*indexenc.Store
}

// Open opens (creating if necessary) the "tagindex" top-level partition.
func Open(db *kv.DB) (*Index, error) {
	root, err := db.Partition("tagindex")
	if err != nil {
		return nil, fmt.Errorf("tagindex: open: %w", err)
	}
	return &Index{root: root, tenants: map[string]*indexenc.Store{}}, nil
}

func (x *Index) tenant(tenantDid string) (*indexenc.Store, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if s, ok := x.tenants[tenantDid]; ok {
		return s, nil
	}
	p, err := x.root.Partition(tenantDid)
	if err != nil {
		return nil, err
	}
	s := indexenc.New(p)
	x.tenants[tenantDid] = s
	return s, nil
}

// ReplaceOps builds the ops that atomically replace recordId's current
// index entry with indexes/watermark, without applying them — for folding
// into a kv.DB.CrossBatch alongside the message store and event log writes
// of the same RecordsWrite (spec.md §5: one record operation is one
// transaction).
func (x *Index) ReplaceOps(tenantDid, recordId, watermark string, indexes map[string]any) ([]kv.PartitionOps, error) {
	s, err := x.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	deleteOps, err := s.DeleteOps(recordId)
	if err != nil {
		return nil, err
	}
	putOps, err := s.PutOps(recordId, watermark, indexes)
	if err != nil {
		return nil, err
	}
	return []kv.PartitionOps{{Partition: s.Partition(), Ops: append(deleteOps, putOps...)}}, nil
}

// RemoveOps builds the ops that drop recordId's current index entry
// entirely (a RecordsDelete tombstones the record, so it no longer has
// queryable tag state).
func (x *Index) RemoveOps(tenantDid, recordId string) ([]kv.PartitionOps, error) {
	s, err := x.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	ops, err := s.DeleteOps(recordId)
	if err != nil || ops == nil {
		return nil, err
	}
	return []kv.PartitionOps{{Partition: s.Partition(), Ops: ops}}, nil
}

// Replace applies ReplaceOps immediately. Convenience wrapper for callers
// that don't need to combine it with sibling-partition writes.
func (x *Index) Replace(tenantDid, recordId, watermark string, indexes map[string]any) error {
	s, err := x.tenant(tenantDid)
	if err != nil {
		return err
	}
	if err := s.DeleteByCid(recordId); err != nil {
		return err
	}
	return s.Put(recordId, watermark, indexes)
}

// Query evaluates a disjunction of filter conjunctions against tenantDid's
// current record state, returning every matching recordId.
func (x *Index) Query(tenantDid string, filters []map[string]filter.Condition, cursor string) ([]Match, error) {
	s, err := x.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	return s.Query(filters, cursor)
}

package eventlog

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/indexenc"
	"github.com/cuemby/dwn/pkg/kv"
)

// Event is one append-ordered hit: the message it points at and the
// watermark it was appended under.
type Event = indexenc.Entry

// Log is the tenant-partitioned, watermark-ordered event log.
type Log struct {
	db   *kv.DB
	root *kv.Partition

	mu      sync.Mutex
	tenants map[string]*tenantLog
}

type tenantLog struct {
	mu         sync.Mutex
	entropy    *ulid.MonotonicEntropy
	index      *indexenc.Store
	watermarks *kv.Partition // watermark -> messageCid
	cids       *kv.Partition // messageCid -> watermark
}

// Open opens (creating if necessary) the "events" top-level partition.
func Open(db *kv.DB) (*Log, error) {
	root, err := db.Partition("events")
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return &Log{db: db, root: root, tenants: map[string]*tenantLog{}}, nil
}

func (l *Log) tenant(tenantDid string) (*tenantLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.tenants[tenantDid]; ok {
		return t, nil
	}
	tp, err := l.root.Partition(tenantDid)
	if err != nil {
		return nil, err
	}
	idxP, err := tp.Partition("index")
	if err != nil {
		return nil, err
	}
	wmP, err := tp.Partition("watermarks")
	if err != nil {
		return nil, err
	}
	cidP, err := tp.Partition("cids")
	if err != nil {
		return nil, err
	}
	t := &tenantLog{
		index:      indexenc.New(idxP),
		watermarks: wmP,
		cids:       cidP,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	l.tenants[tenantDid] = t
	return t, nil
}

// NextWatermark mints a new, strictly-increasing watermark for tenantDid.
// Callers generate it once per message and reuse the same value for the
// message store, tag index, and event log writes of that message.
func (l *Log) NextWatermark(tenantDid string) (string, error) {
	t, err := l.tenant(tenantDid)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), t.entropy)
	if err != nil {
		return "", fmt.Errorf("eventlog: mint watermark: %w", err)
	}
	return id.String(), nil
}

// AppendOps builds the writes for recording messageCid at watermark, scoped
// to indexes, without applying them — for folding into a kv.DB.CrossBatch
// alongside the message store and tag index writes of the same message.
func (l *Log) AppendOps(tenantDid, messageCid, watermark string, indexes map[string]any) ([]kv.PartitionOps, error) {
	t, err := l.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	idxOps, err := t.index.PutOps(messageCid, watermark, indexes)
	if err != nil {
		return nil, err
	}
	return []kv.PartitionOps{
		{Partition: t.watermarks, Ops: []kv.Op{kv.PutOp([]byte(watermark), []byte(messageCid))}},
		{Partition: t.cids, Ops: []kv.Op{kv.PutOp([]byte(messageCid), []byte(watermark))}},
		{Partition: t.index.Partition(), Ops: idxOps},
	}, nil
}

// Append mints a watermark and records messageCid immediately. Convenience
// wrapper for callers that do not need to combine the append with other
// partitions' writes in one transaction.
func (l *Log) Append(tenantDid, messageCid string, indexes map[string]any) (string, error) {
	watermark, err := l.NextWatermark(tenantDid)
	if err != nil {
		return "", err
	}
	groups, err := l.AppendOps(tenantDid, messageCid, watermark, indexes)
	if err != nil {
		return "", err
	}
	if err := l.db.CrossBatch(groups...); err != nil {
		return "", fmt.Errorf("eventlog: append: %w", err)
	}
	return watermark, nil
}

// DeleteByCidOps builds the delete-ops for removing messageCid from the log
// (e.g. a RecordsWrite superseded before it was ever queried), for folding
// into a CrossBatch.
func (l *Log) DeleteByCidOps(tenantDid, messageCid string) ([]kv.PartitionOps, error) {
	t, err := l.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	watermark, found, err := t.cids.Get([]byte(messageCid))
	if err != nil || !found {
		return nil, err
	}
	idxOps, err := t.index.DeleteOps(messageCid)
	if err != nil {
		return nil, err
	}
	groups := []kv.PartitionOps{
		{Partition: t.cids, Ops: []kv.Op{kv.DeleteOp([]byte(messageCid))}},
		{Partition: t.watermarks, Ops: []kv.Op{kv.DeleteOp(watermark)}},
	}
	if idxOps != nil {
		groups = append(groups, kv.PartitionOps{Partition: t.index.Partition(), Ops: idxOps})
	}
	return groups, nil
}

// WatermarkOf returns the watermark messageCid was appended under.
func (l *Log) WatermarkOf(tenantDid, messageCid string) (string, bool, error) {
	t, err := l.tenant(tenantDid)
	if err != nil {
		return "", false, err
	}
	v, found, err := t.cids.Get([]byte(messageCid))
	return string(v), found, err
}

// Query evaluates a disjunction of filter conjunctions against tenantDid's
// log, returning matches with watermark strictly after cursor, ascending.
func (l *Log) Query(tenantDid string, filters []map[string]filter.Condition, cursor string) ([]Event, error) {
	t, err := l.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	return t.index.Query(filters, cursor)
}

// Get returns every event recorded for tenantDid after cursor, unfiltered
// (spec.md §4.4's "get events since cursor").
func (l *Log) Get(tenantDid, cursor string) ([]Event, error) {
	t, err := l.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	var out []Event
	err = t.watermarks.Range([]byte(cursor), nil, false, func(e kv.Entry) bool {
		if string(e.Key) == cursor {
			return true
		}
		out = append(out, Event{Watermark: string(e.Key), MessageCid: string(e.Value)})
		return true
	})
	return out, err
}

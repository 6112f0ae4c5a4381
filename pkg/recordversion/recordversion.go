package recordversion

import (
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/dwn/pkg/datastore"
	"github.com/cuemby/dwn/pkg/dwncid"
	"github.com/cuemby/dwn/pkg/eventlog"
	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/messagestore"
	"github.com/cuemby/dwn/pkg/tagindex"
	"github.com/cuemby/dwn/pkg/types"
)

// state is the persisted per-record row.
type state struct {
	InitialCid      string    `cbor:"initialCid"`
	LatestCid       string    `cbor:"latestCid"`
	LatestTimestamp time.Time `cbor:"latestTimestamp"`
	TombstoneCid    string    `cbor:"tombstoneCid,omitempty"`
	Author          string    `cbor:"author"`
	ContextId       string    `cbor:"contextId,omitempty"`
}

// Manager owns the per-record state machine.
type Manager struct {
	db       *kv.DB
	root     *kv.Partition
	messages *messagestore.Store
	data     *datastore.Store
	events   *eventlog.Log
	tags     *tagindex.Index

	mu      sync.Mutex
	tenants map[string]*kv.Partition
}

// Open opens (creating if necessary) the "records" top-level partition.
func Open(db *kv.DB, messages *messagestore.Store, data *datastore.Store, events *eventlog.Log, tags *tagindex.Index) (*Manager, error) {
	root, err := db.Partition("records")
	if err != nil {
		return nil, fmt.Errorf("recordversion: open: %w", err)
	}
	return &Manager{
		db: db, root: root,
		messages: messages, data: data, events: events, tags: tags,
		tenants: map[string]*kv.Partition{},
	}, nil
}

func (m *Manager) tenant(tenantDid string) (*kv.Partition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.tenants[tenantDid]; ok {
		return p, nil
	}
	p, err := m.root.Partition(tenantDid)
	if err != nil {
		return nil, err
	}
	m.tenants[tenantDid] = p
	return p, nil
}

func (m *Manager) get(tenantDid, recordId string) (*state, bool, error) {
	p, err := m.tenant(tenantDid)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := p.Get([]byte(recordId))
	if err != nil || !found {
		return nil, found, err
	}
	var s state
	if err := cbor.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("recordversion: decode state %s: %w", recordId, err)
	}
	return &s, true, nil
}

func (m *Manager) putState(tenantDid, recordId string, s state) (kv.PartitionOps, error) {
	p, err := m.tenant(tenantDid)
	if err != nil {
		return kv.PartitionOps{}, err
	}
	raw, err := cbor.Marshal(s)
	if err != nil {
		return kv.PartitionOps{}, err
	}
	return kv.PartitionOps{Partition: p, Ops: []kv.Op{kv.PutOp([]byte(recordId), raw)}}, nil
}

// greaterPair reports whether (t1,c1) strictly exceeds (t2,c2) under the
// pairwise order spec.md §5 defines: timestamp first, MessageCid breaks
// ties.
func greaterPair(t1 time.Time, c1 string, t2 time.Time, c2 string) bool {
	if !t1.Equal(t2) {
		return t1.After(t2)
	}
	return c1 > c2
}

// ProcessWrite applies a Records/Write message to its record's state
// machine. author is the logical author already resolved by the caller (the
// delegated grantor when the write carries an authorDelegatedGrant,
// otherwise the signer) — recordversion never verifies signatures or
// grants itself (spec.md §4.7 is a separate component). expectedContextId
// is the deterministic contextId pkg/protocolauth computed for
// protocol-bound writes, or "" when the write isn't protocol-bound. data is
// the attached data stream, or nil when the write declares an existing
// dataCid without resending bytes.
func (m *Manager) ProcessWrite(tenantDid, author, expectedContextId string, msg *types.Message, indexes map[string]any, data []byte) (*types.Message, error) {
	w, ok := msg.Descriptor.(types.RecordsWriteDescriptor)
	if !ok {
		return nil, fmt.Errorf("recordversion: not a RecordsWrite descriptor")
	}
	cur, found, err := m.get(tenantDid, w.RecordId)
	if err != nil {
		return nil, err
	}
	if !found {
		return m.processInitialWrite(tenantDid, author, expectedContextId, msg, w, indexes, data)
	}
	if cur.TombstoneCid != "" {
		return nil, types.NewError(types.KindConflict, "recordversion: record is tombstoned")
	}
	return m.processSubsequentWrite(tenantDid, author, msg, w, cur, indexes, data)
}

func (m *Manager) processInitialWrite(tenantDid, author, expectedContextId string, msg *types.Message, w types.RecordsWriteDescriptor, indexes map[string]any, data []byte) (*types.Message, error) {
	if !w.DateCreated.Equal(w.MessageTimestamp) {
		return nil, types.NewError(types.KindIntegrity, "recordversion: initial write requires dateCreated == messageTimestamp")
	}
	if expectedContextId != "" && w.ContextId != expectedContextId {
		return nil, types.NewError(types.KindIntegrity, "recordversion: contextId does not match computed ancestry")
	}
	if err := m.ensureDataStream(tenantDid, w.RecordId, w.DataCid, data); err != nil {
		return nil, err
	}

	watermark, err := m.events.NextWatermark(tenantDid)
	if err != nil {
		return nil, err
	}
	cid, msOps, err := m.messages.PutOps(tenantDid, author, msg)
	if err != nil {
		return nil, err
	}
	evOps, err := m.events.AppendOps(tenantDid, cid, watermark, indexes)
	if err != nil {
		return nil, err
	}
	tagOps, err := m.tags.ReplaceOps(tenantDid, w.RecordId, watermark, indexes)
	if err != nil {
		return nil, err
	}
	stateOp, err := m.putState(tenantDid, w.RecordId, state{
		InitialCid: cid, LatestCid: cid, LatestTimestamp: w.MessageTimestamp,
		Author: author, ContextId: w.ContextId,
	})
	if err != nil {
		return nil, err
	}
	groups := append(append(msOps, evOps...), tagOps...)
	groups = append(groups, stateOp)
	if err := m.db.CrossBatch(groups...); err != nil {
		return nil, fmt.Errorf("recordversion: commit initial write: %w", err)
	}
	return msg, nil
}

func (m *Manager) processSubsequentWrite(tenantDid, author string, msg *types.Message, w types.RecordsWriteDescriptor, cur *state, indexes map[string]any, data []byte) (*types.Message, error) {
	initialMsg, found, err := m.messages.Get(tenantDid, cur.InitialCid)
	if err != nil {
		return nil, err
	}
	if found {
		initialW := initialMsg.Descriptor.(types.RecordsWriteDescriptor)
		if w.ImmutableFingerprint() != initialW.ImmutableFingerprint() {
			return nil, types.NewError(types.KindIntegrity, types.TokenImmutableFieldChanged)
		}
	}
	cid, err := dwncid.MessageCid(msg)
	if err != nil {
		return nil, err
	}
	if !greaterPair(w.MessageTimestamp, cid, cur.LatestTimestamp, cur.LatestCid) {
		return nil, types.NewError(types.KindConflict, "recordversion: write loses ordering against current latest")
	}
	if err := m.ensureDataStream(tenantDid, w.RecordId, w.DataCid, data); err != nil {
		return nil, err
	}

	watermark, err := m.events.NextWatermark(tenantDid)
	if err != nil {
		return nil, err
	}
	_, msOps, err := m.messages.PutOps(tenantDid, author, msg)
	if err != nil {
		return nil, err
	}
	evOps, err := m.events.AppendOps(tenantDid, cid, watermark, indexes)
	if err != nil {
		return nil, err
	}
	tagOps, err := m.tags.ReplaceOps(tenantDid, w.RecordId, watermark, indexes)
	if err != nil {
		return nil, err
	}
	groups := append(append(msOps, evOps...), tagOps...)

	if cur.LatestCid != cur.InitialCid {
		oldMsg, found, err := m.messages.Get(tenantDid, cur.LatestCid)
		if err != nil {
			return nil, err
		}
		delOps, err := m.messages.DeleteOps(tenantDid, cur.LatestCid)
		if err != nil {
			return nil, err
		}
		groups = append(groups, delOps...)
		if found {
			oldW := oldMsg.Descriptor.(types.RecordsWriteDescriptor)
			if oldW.DataCid != w.DataCid {
				if err := m.data.Delete(tenantDid, w.RecordId, oldW.DataCid); err != nil {
					return nil, err
				}
			}
		}
	}

	stateOp, err := m.putState(tenantDid, w.RecordId, state{
		InitialCid: cur.InitialCid, LatestCid: cid, LatestTimestamp: w.MessageTimestamp,
		Author: cur.Author, ContextId: cur.ContextId,
	})
	if err != nil {
		return nil, err
	}
	groups = append(groups, stateOp)
	if err := m.db.CrossBatch(groups...); err != nil {
		return nil, fmt.Errorf("recordversion: commit subsequent write: %w", err)
	}
	return msg, nil
}

// ensureDataStream enforces the data-stream policy (spec.md §4.3, §4.6): a
// write without an attached stream must reference a dataCid this
// (tenant, recordId) already owns.
func (m *Manager) ensureDataStream(tenantDid, recordId, dataCid string, data []byte) error {
	if data != nil {
		_, _, err := m.data.Put(tenantDid, recordId, dataCid, data)
		return err
	}
	exists, err := m.data.Exists(tenantDid, recordId, dataCid)
	if err != nil {
		return err
	}
	if !exists {
		return types.NewError(types.KindIntegrity, types.TokenRecordsWriteMissingDataStream)
	}
	return nil
}

// ProcessDelete applies a Records/Delete message (a tombstone). Deleting an
// absent record, or resubmitting the same delete on an already-tombstoned
// record, is an idempotent no-op success (spec.md §4.6, §8 property 6).
func (m *Manager) ProcessDelete(tenantDid, author string, msg *types.Message) (*types.Message, bool, error) {
	d, ok := msg.Descriptor.(types.RecordsDeleteDescriptor)
	if !ok {
		return nil, false, fmt.Errorf("recordversion: not a RecordsDelete descriptor")
	}
	cur, found, err := m.get(tenantDid, d.RecordId)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	if cur.TombstoneCid != "" {
		existing, _, err := m.messages.Get(tenantDid, cur.TombstoneCid)
		return existing, d.Prune, err
	}
	if !d.MessageTimestamp.After(cur.LatestTimestamp) {
		return nil, false, types.NewError(types.KindConflict, "recordversion: delete does not strictly follow latest write")
	}

	watermark, err := m.events.NextWatermark(tenantDid)
	if err != nil {
		return nil, false, err
	}
	cid, msOps, err := m.messages.PutOps(tenantDid, author, msg)
	if err != nil {
		return nil, false, err
	}
	evOps, err := m.events.AppendOps(tenantDid, cid, watermark, nil)
	if err != nil {
		return nil, false, err
	}
	tagOps, err := m.tags.RemoveOps(tenantDid, d.RecordId)
	if err != nil {
		return nil, false, err
	}
	stateOp, err := m.putState(tenantDid, d.RecordId, state{
		InitialCid: cur.InitialCid, LatestCid: cur.LatestCid, LatestTimestamp: cur.LatestTimestamp,
		TombstoneCid: cid, Author: cur.Author, ContextId: cur.ContextId,
	})
	if err != nil {
		return nil, false, err
	}
	groups := append(append(msOps, evOps...), tagOps...)
	groups = append(groups, stateOp)
	if err := m.db.CrossBatch(groups...); err != nil {
		return nil, false, fmt.Errorf("recordversion: commit delete: %w", err)
	}
	return msg, d.Prune, nil
}

// PruneNonInitialWrites removes a tombstoned record's superseded write and
// its data blob, keeping only the initial write and the tombstone. It is
// the idempotent unit of work pkg/tasks resumes across restarts; a no-op if
// there is nothing left to prune.
func (m *Manager) PruneNonInitialWrites(tenantDid, recordId string) error {
	cur, found, err := m.get(tenantDid, recordId)
	if err != nil || !found || cur.LatestCid == cur.InitialCid {
		return err
	}
	oldMsg, found, err := m.messages.Get(tenantDid, cur.LatestCid)
	if err != nil {
		return err
	}
	if found {
		oldW := oldMsg.Descriptor.(types.RecordsWriteDescriptor)
		if err := m.data.Delete(tenantDid, recordId, oldW.DataCid); err != nil {
			return err
		}
		if err := m.messages.Delete(tenantDid, cur.LatestCid); err != nil {
			return err
		}
	}
	cur.LatestCid = cur.InitialCid
	op, err := m.putState(tenantDid, recordId, *cur)
	if err != nil {
		return err
	}
	return op.Partition.Batch(op.Ops)
}

// Author returns the logical author recorded against recordId's initial
// write, or false if the record has never been written.
func (m *Manager) Author(tenantDid, recordId string) (string, bool, error) {
	cur, found, err := m.get(tenantDid, recordId)
	if err != nil || !found {
		return "", false, err
	}
	return cur.Author, true, nil
}

// Read returns a record's current readable message, or a NotFound error if
// the record is absent or tombstoned.
func (m *Manager) Read(tenantDid, recordId string) (*types.Message, error) {
	cur, found, err := m.get(tenantDid, recordId)
	if err != nil {
		return nil, err
	}
	if !found || cur.TombstoneCid != "" {
		return nil, types.NewError(types.KindNotFound, "recordversion: record not found")
	}
	msg, found, err := m.messages.Get(tenantDid, cur.LatestCid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, types.NewError(types.KindNotFound, "recordversion: record not found")
	}
	return msg, nil
}

// State returns the logical grouping of a record's messages, for callers
// (pkg/protocolauth's ancestor-chain resolution) that need the initial
// write, current latest write, and tombstone together.
func (m *Manager) State(tenantDid, recordId string) (*types.RecordState, error) {
	cur, found, err := m.get(tenantDid, recordId)
	if err != nil {
		return nil, err
	}
	if !found {
		return &types.RecordState{RecordId: recordId}, nil
	}
	initial, _, err := m.messages.Get(tenantDid, cur.InitialCid)
	if err != nil {
		return nil, err
	}
	latest, _, err := m.messages.Get(tenantDid, cur.LatestCid)
	if err != nil {
		return nil, err
	}
	rs := &types.RecordState{RecordId: recordId, InitialWrite: initial, LatestWrite: latest}
	if cur.TombstoneCid != "" {
		tombstone, _, err := m.messages.Get(tenantDid, cur.TombstoneCid)
		if err != nil {
			return nil, err
		}
		rs.Tombstone = tombstone
	}
	return rs, nil
}

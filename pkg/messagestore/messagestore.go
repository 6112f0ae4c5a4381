package messagestore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/dwn/pkg/dwncid"
	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/indexenc"
	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/types"
)

// Store is the tenant-partitioned message store.
type Store struct {
	root *kv.Partition

	mu      sync.Mutex
	tenants map[string]*tenantStore
}

type tenantStore struct {
	messages *kv.Partition
	index    *indexenc.Store
}

// Open opens (creating if necessary) the "messages" top-level partition.
func Open(db *kv.DB) (*Store, error) {
	root, err := db.Partition("messages")
	if err != nil {
		return nil, fmt.Errorf("messagestore: open: %w", err)
	}
	return &Store{root: root, tenants: map[string]*tenantStore{}}, nil
}

func (s *Store) tenant(tenantDid string) (*tenantStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[tenantDid]; ok {
		return t, nil
	}
	tp, err := s.root.Partition(tenantDid)
	if err != nil {
		return nil, err
	}
	msgs, err := tp.Partition("bodies")
	if err != nil {
		return nil, err
	}
	idxP, err := tp.Partition("index")
	if err != nil {
		return nil, err
	}
	t := &tenantStore{messages: msgs, index: indexenc.New(idxP)}
	s.tenants[tenantDid] = t
	return t, nil
}

// Put stores m, indexed under author (the signer DID, resolved by the
// caller — messagestore never verifies signatures itself). Returns the
// computed MessageCid.
func (s *Store) Put(tenantDid, author string, m *types.Message) (string, error) {
	cid, groups, err := s.putOps(tenantDid, author, m)
	if err != nil {
		return "", err
	}
	return cid, applyGroups(s, groups)
}

// PutOps builds the writes for storing m without applying them, for folding
// into a kv.DB.CrossBatch alongside pkg/tagindex and pkg/eventlog writes of
// the same message. The caller must apply the returned groups via the same
// kv.DB this Store was opened against.
func (s *Store) PutOps(tenantDid, author string, m *types.Message) (string, []kv.PartitionOps, error) {
	return s.putOps(tenantDid, author, m)
}

func (s *Store) putOps(tenantDid, author string, m *types.Message) (string, []kv.PartitionOps, error) {
	cid, err := dwncid.MessageCid(m)
	if err != nil {
		return "", nil, fmt.Errorf("messagestore: compute cid: %w", err)
	}
	encoded, err := dwncid.Encode(m)
	if err != nil {
		return "", nil, fmt.Errorf("messagestore: encode message: %w", err)
	}
	t, err := s.tenant(tenantDid)
	if err != nil {
		return "", nil, err
	}
	idxOps, err := t.index.PutOps(cid, cid, fixedFields(author, m))
	if err != nil {
		return "", nil, err
	}
	groups := []kv.PartitionOps{
		{Partition: t.messages, Ops: []kv.Op{kv.PutOp([]byte(cid), encoded)}},
		{Partition: t.index.Partition(), Ops: idxOps},
	}
	return cid, groups, nil
}

func applyGroups(s *Store, groups []kv.PartitionOps) error {
	for _, g := range groups {
		if err := g.Partition.Batch(g.Ops); err != nil {
			return fmt.Errorf("messagestore: apply: %w", err)
		}
	}
	return nil
}

// Get returns the message stored under cid.
func (s *Store) Get(tenantDid, cid string) (*types.Message, bool, error) {
	t, err := s.tenant(tenantDid)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := t.messages.Get([]byte(cid))
	if err != nil || !found {
		return nil, false, err
	}
	m, err := dwncid.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("messagestore: decode message %s: %w", cid, err)
	}
	return m, true, nil
}

// DeleteOps builds the ops that remove cid and its index entry, for folding
// into a CrossBatch (recordversion's subsequent-write path uses this to drop
// the superseded latest write).
func (s *Store) DeleteOps(tenantDid, cid string) ([]kv.PartitionOps, error) {
	t, err := s.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	idxOps, err := t.index.DeleteOps(cid)
	if err != nil {
		return nil, err
	}
	groups := []kv.PartitionOps{
		{Partition: t.messages, Ops: []kv.Op{kv.DeleteOp([]byte(cid))}},
	}
	if idxOps != nil {
		groups = append(groups, kv.PartitionOps{Partition: t.index.Partition(), Ops: idxOps})
	}
	return groups, nil
}

// Delete applies DeleteOps immediately.
func (s *Store) Delete(tenantDid, cid string) error {
	groups, err := s.DeleteOps(tenantDid, cid)
	if err != nil {
		return err
	}
	return applyGroups(s, groups)
}

// Query evaluates a disjunction of filter conjunctions over the fixed field
// index, resolving each hit to its stored message, deduplicated by
// MessageCid and sorted by messageTimestamp ascending (spec.md §4.2).
func (s *Store) Query(tenantDid string, filters []map[string]filter.Condition) ([]*types.Message, error) {
	t, err := s.tenant(tenantDid)
	if err != nil {
		return nil, err
	}
	entries, err := t.index.Query(filters, "")
	if err != nil {
		return nil, err
	}
	out := make([]*types.Message, 0, len(entries))
	for _, e := range entries {
		m, found, err := s.Get(tenantDid, e.MessageCid)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.Base().MessageTimestamp.Before(out[j].Descriptor.Base().MessageTimestamp)
	})
	return out, nil
}

// fixedFields extracts the fixed, always-indexed field list spec.md §4.2
// names, varying by descriptor type.
func fixedFields(author string, m *types.Message) map[string]any {
	base := m.Descriptor.Base()
	fields := map[string]any{
		"interface":        string(base.Interface),
		"method":           string(base.Method),
		"messageTimestamp": base.MessageTimestamp.UnixNano(),
		"author":           author,
	}
	switch d := m.Descriptor.(type) {
	case types.RecordsWriteDescriptor:
		fields["recordId"] = d.RecordId
		fields["dataFormat"] = d.DataFormat
		fields["dateCreated"] = d.DateCreated.UnixNano()
		fields["published"] = d.Published
		if d.Protocol != "" {
			fields["protocol"] = d.Protocol
		}
		if d.ProtocolPath != "" {
			fields["protocolPath"] = d.ProtocolPath
		}
		if d.ContextId != "" {
			fields["contextId"] = d.ContextId
		}
		if d.Schema != "" {
			fields["schema"] = d.Schema
		}
		if d.ParentId != "" {
			fields["parentId"] = d.ParentId
		}
		if d.Recipient != "" {
			fields["recipient"] = d.Recipient
		}
		if d.DatePublished != nil {
			fields["datePublished"] = d.DatePublished.UnixNano()
		}
	case types.RecordsDeleteDescriptor:
		fields["recordId"] = d.RecordId
	case types.ProtocolsConfigureDescriptor:
		fields["protocol"] = d.Definition.Protocol
	case types.ProtocolsQueryDescriptor:
		if d.Protocol != "" {
			fields["protocol"] = d.Protocol
		}
	case types.PermissionsGrantDescriptor:
		fields["grantedTo"] = d.GrantedTo
		fields["grantedFor"] = d.GrantedFor
		if d.Scope.Protocol != "" {
			fields["protocol"] = d.Scope.Protocol
		}
	case types.PermissionsRevokeDescriptor:
		fields["grantId"] = d.GrantId
	}
	return fields
}

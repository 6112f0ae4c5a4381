package datastore

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cuemby/dwn/pkg/dwncid"
	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/types"
)

// Store is the tenant-partitioned, reference-counted blob store.
type Store struct {
	root *kv.Partition

	mu      sync.Mutex
	tenants map[string]*tenantStore
}

type tenantStore struct {
	blobs *kv.Partition
	refs  *kv.Partition
}

// Open opens (creating if necessary) the "data" top-level partition.
func Open(db *kv.DB) (*Store, error) {
	root, err := db.Partition("data")
	if err != nil {
		return nil, fmt.Errorf("datastore: open: %w", err)
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
	blobs, err := tp.Partition("blobs")
	if err != nil {
		return nil, err
	}
	refs, err := tp.Partition("refs")
	if err != nil {
		return nil, err
	}
	t := &tenantStore{blobs: blobs, refs: refs}
	s.tenants[tenantDid] = t
	return t, nil
}

func blobKey(recordId, dataCid string) []byte {
	return []byte(recordId + "\x00" + dataCid)
}

// Put stores data under (tenantDid, recordId), verifying it hashes to
// dataCid. Resubmitting the same (recordId, dataCid) increments a reference
// count instead of rewriting the bytes. Returns the verified dataCid and
// its size.
func (s *Store) Put(tenantDid, recordId, dataCid string, data []byte) (string, int64, error) {
	computed, err := dwncid.OfRawData(data)
	if err != nil {
		return "", 0, fmt.Errorf("datastore: hash data: %w", err)
	}
	if computed != dataCid {
		return "", 0, types.NewError(types.KindIntegrity, "datastore: dataCid mismatch: declared "+dataCid+" computed "+computed)
	}
	t, err := s.tenant(tenantDid)
	if err != nil {
		return "", 0, err
	}
	key := blobKey(recordId, dataCid)
	count, err := s.refCount(t, key)
	if err != nil {
		return "", 0, err
	}
	if count == 0 {
		if err := t.blobs.Put(key, data); err != nil {
			return "", 0, fmt.Errorf("datastore: put blob: %w", err)
		}
	}
	if err := s.setRefCount(t, key, count+1); err != nil {
		return "", 0, err
	}
	return dataCid, int64(len(data)), nil
}

// Get returns the blob stored under (tenantDid, recordId, dataCid).
func (s *Store) Get(tenantDid, recordId, dataCid string) ([]byte, bool, error) {
	t, err := s.tenant(tenantDid)
	if err != nil {
		return nil, false, err
	}
	return t.blobs.Get(blobKey(recordId, dataCid))
}

// Exists reports whether (tenantDid, recordId, dataCid) already has a blob,
// without fetching its bytes — the check pkg/recordversion uses to decide
// whether a write without a data stream may reuse a prior blob.
func (s *Store) Exists(tenantDid, recordId, dataCid string) (bool, error) {
	t, err := s.tenant(tenantDid)
	if err != nil {
		return false, err
	}
	count, err := s.refCount(t, blobKey(recordId, dataCid))
	return count > 0, err
}

// Delete decrements (tenantDid, recordId, dataCid)'s reference count,
// removing the bytes once it reaches zero. A no-op if the blob is absent.
func (s *Store) Delete(tenantDid, recordId, dataCid string) error {
	t, err := s.tenant(tenantDid)
	if err != nil {
		return err
	}
	key := blobKey(recordId, dataCid)
	count, err := s.refCount(t, key)
	if err != nil || count == 0 {
		return err
	}
	if count <= 1 {
		if err := t.refs.Delete(key); err != nil {
			return err
		}
		return t.blobs.Delete(key)
	}
	return s.setRefCount(t, key, count-1)
}

func (s *Store) refCount(t *tenantStore, key []byte) (uint64, error) {
	raw, found, err := t.refs.Get(key)
	if err != nil || !found {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Store) setRefCount(t *tenantStore, key []byte, count uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return t.refs.Put(key, buf)
}

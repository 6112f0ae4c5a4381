package messagestore

import (
	"testing"
	"time"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
	"github.com/cuemby/dwn/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func writeMessage(recordId string) *types.Message {
	return &types.Message{
		Descriptor: types.RecordsWriteDescriptor{
			DescriptorBase: types.DescriptorBase{
				Interface:        types.InterfaceRecords,
				Method:           types.MethodWrite,
				MessageTimestamp: time.Now(),
			},
			RecordId:    recordId,
			DataFormat:  "application/json",
			DataCid:     "bafy...",
			DateCreated: time.Now(),
		},
	}
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	m := writeMessage("rec-1")
	cid, err := s.Put("did:example:alice", "did:example:alice", m)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, found, err := s.Get("did:example:alice", cid)
	if err != nil || !found {
		t.Fatalf("Get = %v, %v, %v", got, found, err)
	}
	desc := got.Descriptor.(types.RecordsWriteDescriptor)
	if desc.RecordId != "rec-1" {
		t.Fatalf("RecordId = %q, want rec-1", desc.RecordId)
	}
}

func TestGetAbsentCid(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Get("did:example:alice", "no-such-cid")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("expected absent message to report not found")
	}
}

func TestDeleteRemovesMessageAndIndexEntry(t *testing.T) {
	s := newTestStore(t)
	m := writeMessage("rec-1")
	cid, err := s.Put("did:example:alice", "did:example:alice", m)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("did:example:alice", cid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := s.Get("did:example:alice", cid); found {
		t.Fatal("expected message gone after Delete")
	}
	results, err := s.Query("did:example:alice", []map[string]filter.Condition{{"recordId": filter.Eq("rec-1")}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no query hits after delete, got %d", len(results))
	}
}

func TestQueryByFixedFields(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put("did:example:alice", "did:example:alice", writeMessage("rec-1"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err = s.Put("did:example:alice", "did:example:alice", writeMessage("rec-2"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	results, err := s.Query("did:example:alice", []map[string]filter.Condition{{"recordId": filter.Eq("rec-1")}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Query = %d results, want 1", len(results))
	}
}

func TestQueryResultsSortedByTimestamp(t *testing.T) {
	s := newTestStore(t)
	older := writeMessage("rec-older")
	older.Descriptor = setTimestamp(older.Descriptor.(types.RecordsWriteDescriptor), time.Now().Add(-time.Hour))
	newer := writeMessage("rec-newer")

	_, err := s.Put("did:example:alice", "did:example:alice", older)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err = s.Put("did:example:alice", "did:example:alice", newer)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	results, err := s.Query("did:example:alice", []map[string]filter.Condition{
		{"recordId": filter.Any("rec-older", "rec-newer")},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Query = %d results, want 2", len(results))
	}
	first := results[0].Descriptor.(types.RecordsWriteDescriptor)
	if first.RecordId != "rec-older" {
		t.Fatalf("results not sorted by timestamp ascending: first=%s", first.RecordId)
	}
}

func setTimestamp(d types.RecordsWriteDescriptor, ts time.Time) types.RecordsWriteDescriptor {
	d.MessageTimestamp = ts
	return d
}

func TestTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	cid, err := s.Put("did:example:alice", "did:example:alice", writeMessage("rec-1"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, found, _ := s.Get("did:example:bob", cid); found {
		t.Fatal("expected bob's store to not see alice's message")
	}
}

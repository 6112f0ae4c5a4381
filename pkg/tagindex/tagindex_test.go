package tagindex

import (
	"testing"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	x, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return x
}

func TestReplaceThenQuery(t *testing.T) {
	x := newTestIndex(t)
	if err := x.Replace("did:example:alice", "rec-1", "0001", map[string]any{"status": "active"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	results, err := x.Query("did:example:alice", []map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].MessageCid != "rec-1" {
		t.Fatalf("Query = %+v, want single hit rec-1", results)
	}
}

func TestReplaceSupersedesPriorIndexState(t *testing.T) {
	x := newTestIndex(t)
	_ = x.Replace("did:example:alice", "rec-1", "0001", map[string]any{"status": "pending"})
	if err := x.Replace("did:example:alice", "rec-1", "0002", map[string]any{"status": "active"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	pending, err := x.Query("did:example:alice", []map[string]filter.Condition{{"status": filter.Eq("pending")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no hits for superseded status, got %+v", pending)
	}

	active, err := x.Query("did:example:alice", []map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one hit for current status, got %+v", active)
	}
}

func TestRemoveOpsClearsRecordFromIndex(t *testing.T) {
	x := newTestIndex(t)
	_ = x.Replace("did:example:alice", "rec-1", "0001", map[string]any{"status": "active"})

	groups, err := x.RemoveOps("did:example:alice", "rec-1")
	if err != nil {
		t.Fatalf("RemoveOps: %v", err)
	}
	for _, g := range groups {
		if err := g.Partition.Batch(g.Ops); err != nil {
			t.Fatalf("apply RemoveOps: %v", err)
		}
	}

	results, err := x.Query("did:example:alice", []map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected record removed from index, got %+v", results)
	}
}

func TestTenantIsolation(t *testing.T) {
	x := newTestIndex(t)
	_ = x.Replace("did:example:alice", "rec-1", "0001", map[string]any{"status": "active"})
	results, err := x.Query("did:example:bob", []map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected bob's index empty, got %+v", results)
	}
}

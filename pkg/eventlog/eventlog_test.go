package eventlog

import (
	"testing"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	l, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l
}

func TestAppendAndGetSinceCursor(t *testing.T) {
	l := newTestLog(t)
	wm1, err := l.Append("did:example:alice", "cid-1", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Append("did:example:alice", "cid-2", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := l.Get("did:example:alice", wm1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(events) != 1 || events[0].MessageCid != "cid-2" {
		t.Fatalf("Get(since wm1) = %+v, want only cid-2", events)
	}
}

func TestGetFromBeginning(t *testing.T) {
	l := newTestLog(t)
	_, _ = l.Append("did:example:alice", "cid-1", nil)
	_, _ = l.Append("did:example:alice", "cid-2", nil)

	events, err := l.Get("did:example:alice", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Get(\"\") = %+v, want 2 events", events)
	}
}

func TestWatermarksAreMonotonic(t *testing.T) {
	l := newTestLog(t)
	wm1, _ := l.Append("did:example:alice", "cid-1", nil)
	wm2, _ := l.Append("did:example:alice", "cid-2", nil)
	if !(wm1 < wm2) {
		t.Fatalf("watermarks not monotonic: %s >= %s", wm1, wm2)
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	l := newTestLog(t)
	_, _ = l.Append("did:example:alice", "cid-1", nil)
	events, err := l.Get("did:example:bob", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected bob's log empty, got %+v", events)
	}
}

func TestQueryWithIndexes(t *testing.T) {
	l := newTestLog(t)
	_, err := l.Append("did:example:alice", "cid-1", map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	_, err = l.Append("did:example:alice", "cid-2", map[string]any{"status": "done"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	results, err := l.Query("did:example:alice", []map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].MessageCid != "cid-1" {
		t.Fatalf("Query = %+v, want single hit cid-1", results)
	}
}

func TestWatermarkOf(t *testing.T) {
	l := newTestLog(t)
	wm, err := l.Append("did:example:alice", "cid-1", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, found, err := l.WatermarkOf("did:example:alice", "cid-1")
	if err != nil || !found || got != wm {
		t.Fatalf("WatermarkOf = %q, %v, %v, want %q, true, nil", got, found, err, wm)
	}
	if _, found, _ := l.WatermarkOf("did:example:alice", "never-appended"); found {
		t.Fatal("expected WatermarkOf to report absent for unknown cid")
	}
}

func TestDeleteByCidOpsRemovesEntry(t *testing.T) {
	l := newTestLog(t)
	_, err := l.Append("did:example:alice", "cid-1", map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	groups, err := l.DeleteByCidOps("did:example:alice", "cid-1")
	if err != nil {
		t.Fatalf("DeleteByCidOps: %v", err)
	}
	if err := l.db.CrossBatch(groups...); err != nil {
		t.Fatalf("CrossBatch: %v", err)
	}
	if _, found, _ := l.WatermarkOf("did:example:alice", "cid-1"); found {
		t.Fatal("expected cid-1 removed after DeleteByCidOps applied")
	}
	events, err := l.Get("did:example:alice", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty log after delete, got %+v", events)
	}
}

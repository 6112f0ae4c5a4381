package indexenc

import (
	"testing"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	p, err := db.Partition("index")
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	return New(p)
}

func TestPutAndQueryEquality(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put("cid-1", "0001", map[string]any{"status": "active"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("cid-2", "0002", map[string]any{"status": "done"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	results, err := s.Query([]map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].MessageCid != "cid-1" {
		t.Fatalf("Query = %+v, want single hit cid-1", results)
	}
}

func TestQueryConjunction(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("cid-1", "0001", map[string]any{"status": "active", "priority": int64(1)})
	_ = s.Put("cid-2", "0002", map[string]any{"status": "active", "priority": int64(2)})

	results, err := s.Query([]map[string]filter.Condition{{
		"status":   filter.Eq("active"),
		"priority": filter.Eq(int64(2)),
	}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].MessageCid != "cid-2" {
		t.Fatalf("Query conjunction = %+v, want single hit cid-2", results)
	}
}

func TestQueryDisjunctionUnionsAcrossFilters(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("cid-1", "0001", map[string]any{"status": "active"})
	_ = s.Put("cid-2", "0002", map[string]any{"status": "done"})

	results, err := s.Query([]map[string]filter.Condition{
		{"status": filter.Eq("active")},
		{"status": filter.Eq("done")},
	}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Query disjunction = %+v, want 2 hits", results)
	}
}

func TestQueryRespectsCursor(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("cid-1", "0001", map[string]any{"status": "active"})
	_ = s.Put("cid-2", "0002", map[string]any{"status": "active"})

	results, err := s.Query([]map[string]filter.Condition{{"status": filter.Eq("active")}}, "0001")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].MessageCid != "cid-2" {
		t.Fatalf("Query with cursor = %+v, want only cid-2", results)
	}
}

func TestArrayValuedTagIndexesEachElement(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put("cid-1", "0001", map[string]any{"tags": []any{"a", "b"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	results, err := s.Query([]map[string]filter.Condition{{"tags": filter.Eq("b")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected array element to be individually indexed, got %+v", results)
	}
}

func TestDeleteByCidRemovesAllComposites(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("cid-1", "0001", map[string]any{"status": "active", "tags": []any{"a", "b"}})
	if err := s.DeleteByCid("cid-1"); err != nil {
		t.Fatalf("DeleteByCid: %v", err)
	}
	results, err := s.Query([]map[string]filter.Condition{{"status": filter.Eq("active")}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no hits after delete, got %+v", results)
	}
}

func TestDeleteByCidOnUnknownCidIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteByCid("never-indexed"); err != nil {
		t.Fatalf("DeleteByCid on unknown cid: %v", err)
	}
}

func TestQueryRange(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put("cid-1", "0001", map[string]any{"count": int64(5)})
	_ = s.Put("cid-2", "0002", map[string]any{"count": int64(15)})
	_ = s.Put("cid-3", "0003", map[string]any{"count": int64(25)})

	results, err := s.Query([]map[string]filter.Condition{{
		"count": filter.Rng(filter.RangeCondition{Gte: int64(10), Lte: int64(20)}),
	}}, "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].MessageCid != "cid-2" {
		t.Fatalf("Query range = %+v, want single hit cid-2", results)
	}
}

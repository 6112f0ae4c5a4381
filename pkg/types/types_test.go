package types

import "testing"

func TestDescriptorBaseAccessors(t *testing.T) {
	base := DescriptorBase{Interface: InterfaceRecords, Method: MethodWrite}
	d := RecordsWriteDescriptor{DescriptorBase: base, RecordId: "rec-1"}
	if got := d.Base(); got.Interface != InterfaceRecords || got.Method != MethodWrite {
		t.Fatalf("Base() = %+v, want %+v", got, base)
	}
}

func TestImmutableFingerprintStableAcrossLaterWrites(t *testing.T) {
	initial := RecordsWriteDescriptor{
		DescriptorBase: DescriptorBase{Interface: InterfaceRecords, Method: MethodWrite},
		RecordId:       "rec-1",
		Schema:         "https://example.com/schema",
		DataFormat:     "application/json",
	}
	later := initial
	later.DataCid = "different-cid"
	later.DataSize = 999
	later.Tags = map[string]any{"status": "done"}

	if initial.ImmutableFingerprint() != later.ImmutableFingerprint() {
		t.Fatal("fingerprint changed across a mutable-field-only update")
	}

	changed := initial
	changed.Schema = "https://example.com/other-schema"
	if initial.ImmutableFingerprint() == changed.ImmutableFingerprint() {
		t.Fatal("fingerprint did not change when an immutable field changed")
	}
}

func TestRecordStateHelpers(t *testing.T) {
	empty := &RecordState{}
	if !empty.IsAbsent() {
		t.Fatal("empty RecordState should report IsAbsent")
	}
	if empty.IsTombstoned() {
		t.Fatal("empty RecordState should not report IsTombstoned")
	}

	withWrite := &RecordState{InitialWrite: &Message{}}
	if withWrite.IsAbsent() {
		t.Fatal("RecordState with InitialWrite should not report IsAbsent")
	}
	if withWrite.IsTombstoned() {
		t.Fatal("RecordState without a Tombstone should not report IsTombstoned")
	}

	tombstoned := &RecordState{InitialWrite: &Message{}, Tombstone: &Message{}}
	if !tombstoned.IsTombstoned() {
		t.Fatal("RecordState with Tombstone should report IsTombstoned")
	}
}

func TestMessageCidCache(t *testing.T) {
	m := &Message{}
	if m.CachedCid() != "" {
		t.Fatal("new Message should have no cached CID")
	}
	m.SetCachedCid("bafyrei...")
	if m.CachedCid() != "bafyrei..." {
		t.Fatalf("CachedCid() = %q, want cached value", m.CachedCid())
	}
}

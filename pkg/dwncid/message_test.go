package dwncid

import (
	"testing"
	"time"

	"github.com/cuemby/dwn/pkg/types"
)

func sampleWriteMessage() *types.Message {
	return &types.Message{
		Descriptor: types.RecordsWriteDescriptor{
			DescriptorBase: types.DescriptorBase{
				Interface:        types.InterfaceRecords,
				Method:           types.MethodWrite,
				MessageTimestamp: time.Unix(0, 0).UTC(),
			},
			RecordId:    "rec-1",
			DataFormat:  "application/json",
			DataCid:     "bafy...",
			DataSize:    5,
			DateCreated: time.Unix(0, 0).UTC(),
		},
		Authorization: &types.Authorization{
			Signatures: []types.JwsSignature{{Protected: "p", Signature: "s", KeyId: "did:example:alice#key-1"}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := sampleWriteMessage()
	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	decodedDesc, ok := decoded.Descriptor.(types.RecordsWriteDescriptor)
	if !ok {
		t.Fatalf("decoded descriptor has type %T, want RecordsWriteDescriptor", decoded.Descriptor)
	}
	if decodedDesc.RecordId != "rec-1" {
		t.Fatalf("RecordId = %q, want rec-1", decodedDesc.RecordId)
	}
	if len(decoded.Authorization.Signatures) != 1 {
		t.Fatalf("expected 1 signature round-tripped, got %d", len(decoded.Authorization.Signatures))
	}
}

func TestMessageCidStableAcrossEncodeDecode(t *testing.T) {
	msg := sampleWriteMessage()
	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cidBefore, err := MessageCid(msg)
	if err != nil {
		t.Fatalf("MessageCid: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cidAfter, err := MessageCid(decoded)
	if err != nil {
		t.Fatalf("MessageCid: %v", err)
	}
	if cidBefore != cidAfter {
		t.Fatalf("CID changed across encode/decode round trip: %s != %s", cidBefore, cidAfter)
	}
}

func TestMessageCidIsCached(t *testing.T) {
	msg := sampleWriteMessage()
	first, err := MessageCid(msg)
	if err != nil {
		t.Fatalf("MessageCid: %v", err)
	}
	if msg.CachedCid() != first {
		t.Fatal("expected MessageCid to populate the cache")
	}
	msg.Descriptor = types.RecordsWriteDescriptor{} // mutate without invalidating cache
	second, err := MessageCid(msg)
	if err != nil {
		t.Fatalf("MessageCid: %v", err)
	}
	if second != first {
		t.Fatal("expected cached CID to be reused even after descriptor mutation")
	}
}

func TestDescriptorCidDiffersForDifferentDescriptors(t *testing.T) {
	a := types.RecordsWriteDescriptor{RecordId: "rec-a"}
	b := types.RecordsWriteDescriptor{RecordId: "rec-b"}
	ca, err := DescriptorCid(a)
	if err != nil {
		t.Fatalf("DescriptorCid: %v", err)
	}
	cb, err := DescriptorCid(b)
	if err != nil {
		t.Fatalf("DescriptorCid: %v", err)
	}
	if ca == cb {
		t.Fatal("expected different descriptors to have different CIDs")
	}
}

func TestDecodeRejectsUnknownDescriptor(t *testing.T) {
	msg := &types.Message{
		Descriptor: types.RecordsQueryDescriptor{
			DescriptorBase: types.DescriptorBase{Interface: "Bogus", Method: "Nope"},
		},
	}
	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected Decode to reject an unknown interface/method pair")
	}
}

package dwncid

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	type sample struct {
		B string
		A int
	}
	v := sample{A: 1, B: "x"}
	c1, _, err := Of(v)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	c2, _, err := Of(v)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("Of not deterministic: %s != %s", c1, c2)
	}
}

func TestOfDiffersOnContent(t *testing.T) {
	c1, _, _ := Of(map[string]any{"a": 1})
	c2, _, _ := Of(map[string]any{"a": 2})
	if c1 == c2 {
		t.Fatal("expected different CIDs for different content")
	}
}

func TestOfRawDataDiffersFromOfForSameBytes(t *testing.T) {
	data := []byte("hello")
	raw, err := OfRawData(data)
	if err != nil {
		t.Fatalf("OfRawData: %v", err)
	}
	cbor, err := OfBytes(data)
	if err != nil {
		t.Fatalf("OfBytes: %v", err)
	}
	if raw == cbor {
		t.Fatal("expected raw-multicodec and cbor-multicodec CIDs of the same bytes to differ")
	}
}

package dwncid

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

var canonicalEncMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dwncid: invalid canonical cbor options: %v", err))
	}
	return em
}()

// CanonicalEncode renders v as deterministic CBOR: map keys sorted, no
// indefinite-length items, shortest-form integers. Two values that are
// field-for-field equal always encode to the same bytes.
func CanonicalEncode(v any) ([]byte, error) {
	return canonicalEncMode.Marshal(v)
}

// OfBytes hashes already-encoded bytes into a CIDv1 tagged with the CBOR
// multicodec.
func OfBytes(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("dwncid: hash: %w", err)
	}
	c := cid.NewCidV1(uint64(mc.Cbor), sum)
	return c.String(), nil
}

// Of canonically encodes v and returns its CID along with the encoded bytes
// (callers that also need the bytes, e.g. for signing, avoid re-encoding).
func Of(v any) (string, []byte, error) {
	data, err := CanonicalEncode(v)
	if err != nil {
		return "", nil, err
	}
	c, err := OfBytes(data)
	return c, data, err
}

// OfRawData hashes an attached data stream into a CIDv1 tagged with the Raw
// multicodec (the stream is arbitrary bytes, not CBOR — unlike OfBytes,
// used for descriptors/messages).
func OfRawData(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("dwncid: hash: %w", err)
	}
	c := cid.NewCidV1(uint64(mc.Raw), sum)
	return c.String(), nil
}

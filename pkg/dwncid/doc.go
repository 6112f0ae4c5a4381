/*
Package dwncid computes content identifiers for DWN messages and
descriptors: a canonical CBOR encoding (github.com/fxamacker/cbor/v2, in its
"canonical" / deterministic mode) hashed with a multihash
(github.com/multiformats/go-multihash) and wrapped as a CIDv1
(github.com/ipfs/go-cid) tagged with the CBOR multicodec
(github.com/multiformats/go-multicodec).

MessageCid is the CID of the full message (descriptor + authorization +
attestation + encryption, excluding the attached data stream). DescriptorCid
is the CID of the descriptor alone — the value signatures are computed over.
*/
package dwncid

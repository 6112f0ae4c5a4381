package dwncid

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/dwn/pkg/types"
)

// wireMessage is the on-the-wire shape used purely for CID computation and
// round-tripping: the descriptor is kept as a raw sub-document so it can be
// hashed (and later decoded) independently of the enclosing message.
type wireMessage struct {
	Descriptor    cbor.RawMessage        `cbor:"descriptor"`
	Authorization *types.Authorization   `cbor:"authorization,omitempty"`
	Attestation   *types.Authorization   `cbor:"attestation,omitempty"`
	Encryption    *types.EncryptionMetadata `cbor:"encryption,omitempty"`
}

// DescriptorCid computes the CID of a descriptor alone (what JWS signatures
// are computed over).
func DescriptorCid(d types.Descriptor) (string, error) {
	cid, _, err := Of(d)
	return cid, err
}

// MessageCid computes the CID of the full message, excluding the attached
// data stream (spec.md §3, Identifiers).
func MessageCid(m *types.Message) (string, error) {
	if cached := m.CachedCid(); cached != "" {
		return cached, nil
	}
	descBytes, err := CanonicalEncode(m.Descriptor)
	if err != nil {
		return "", fmt.Errorf("dwncid: encode descriptor: %w", err)
	}
	wire := wireMessage{
		Descriptor:    descBytes,
		Authorization: m.Authorization,
		Attestation:   m.Attestation,
		Encryption:    m.Encryption,
	}
	cid, _, err := Of(wire)
	if err != nil {
		return "", fmt.Errorf("dwncid: encode message: %w", err)
	}
	m.SetCachedCid(cid)
	return cid, nil
}

// Encode produces the canonical CBOR bytes for a message, suitable for
// storage or for round-tripping through Decode.
func Encode(m *types.Message) ([]byte, error) {
	descBytes, err := CanonicalEncode(m.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("dwncid: encode descriptor: %w", err)
	}
	wire := wireMessage{
		Descriptor:    descBytes,
		Authorization: m.Authorization,
		Attestation:   m.Attestation,
		Encryption:    m.Encryption,
	}
	return CanonicalEncode(wire)
}

// descriptorPeek extracts only interface/method so Decode can pick the
// concrete descriptor type to unmarshal into.
type descriptorPeek struct {
	Interface types.Interface `cbor:"interface"`
	Method    types.Method    `cbor:"method"`
}

// Decode parses bytes produced by Encode back into a Message, resolving the
// descriptor to its concrete method-specific type. Required for the
// deterministic-CID property: CID(Encode(M)) == CID(Encode(Decode(Encode(M)))).
func Decode(data []byte) (*types.Message, error) {
	var wire wireMessage
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("dwncid: decode message: %w", err)
	}
	var peek descriptorPeek
	if err := cbor.Unmarshal(wire.Descriptor, &peek); err != nil {
		return nil, fmt.Errorf("dwncid: decode descriptor header: %w", err)
	}
	desc, err := decodeDescriptor(peek, wire.Descriptor)
	if err != nil {
		return nil, err
	}
	return &types.Message{
		Descriptor:    desc,
		Authorization: wire.Authorization,
		Attestation:   wire.Attestation,
		Encryption:    wire.Encryption,
	}, nil
}

func decodeDescriptor(peek descriptorPeek, raw cbor.RawMessage) (types.Descriptor, error) {
	switch peek.Interface {
	case types.InterfaceRecords:
		switch peek.Method {
		case types.MethodWrite:
			var d types.RecordsWriteDescriptor
			return d, cbor.Unmarshal(raw, &d)
		case types.MethodDelete:
			var d types.RecordsDeleteDescriptor
			return d, cbor.Unmarshal(raw, &d)
		case types.MethodRead:
			var d types.RecordsReadDescriptor
			return d, cbor.Unmarshal(raw, &d)
		case types.MethodQuery:
			var d types.RecordsQueryDescriptor
			return d, cbor.Unmarshal(raw, &d)
		case types.MethodSubscribe:
			var d types.RecordsSubscribeDescriptor
			return d, cbor.Unmarshal(raw, &d)
		}
	case types.InterfaceProtocols:
		switch peek.Method {
		case types.MethodConfigure:
			var d types.ProtocolsConfigureDescriptor
			return d, cbor.Unmarshal(raw, &d)
		case types.MethodQuery:
			var d types.ProtocolsQueryDescriptor
			return d, cbor.Unmarshal(raw, &d)
		}
	case types.InterfacePermissions:
		switch peek.Method {
		case types.MethodGrant:
			var d types.PermissionsGrantDescriptor
			return d, cbor.Unmarshal(raw, &d)
		case types.MethodRevoke:
			var d types.PermissionsRevokeDescriptor
			return d, cbor.Unmarshal(raw, &d)
		}
	case types.InterfaceEvents:
		if peek.Method == types.MethodQuery {
			var d types.EventsQueryDescriptor
			return d, cbor.Unmarshal(raw, &d)
		}
	}
	return nil, fmt.Errorf("dwncid: unknown descriptor %s/%s", peek.Interface, peek.Method)
}

/*
Package types defines the core data structures used throughout the DWN.

This package contains the fundamental types that represent the node's domain
model: messages, descriptors, records, protocol definitions, permission
grants, and events. These types are used by every other package for
persistence, authorization, and indexing.

# Core Types

Message envelope:
  - Message: a signed envelope carrying a Descriptor, Authorization, and
    optional Attestation/Encryption metadata.
  - Descriptor: the immutable, method-specific operation description.
  - Authorization: one or more JWS signatures over the descriptor CID.

Record model:
  - RecordState: the logical grouping of messages sharing a RecordId.
  - Tags: a RecordsWriteDescriptor's map of named values, used for
    secondary indexing.

Protocol model:
  - ProtocolDefinition, RuleSet, ActionRule: the structural/role/action
    rules a protocol declares for its record hierarchy.

Permissions:
  - PermissionsGrant, PermissionsRevokeDescriptor: delegated authority
    assertions.

Events:
  - Event: one append to a tenant's event log, keyed by watermark.

All types are designed to be:
  - Serializable (CBOR for CID computation and storage)
  - Self-documenting (clear field names)
  - Free of behavior beyond small, pure helpers
*/
package types

// Package security implements the AES-256-GCM payload encryption primitive
// a DWN message's EncryptionMetadata (pkg/types.EncryptionMetadata)
// describes. Key derivation and distribution are out of scope for the DWN
// itself (spec.md §1, external collaborator) — this package serves callers
// that need to produce or consume an encrypted data stream alongside a
// signed message. Within this module only its own tests call it.
//
// Adapted from the teacher's pkg/security/secrets.go AES-GCM routines;
// the teacher's CA/mTLS certificate issuance (ca.go, certs.go) has no
// counterpart here since a DWN has no cluster transport to secure.
package security

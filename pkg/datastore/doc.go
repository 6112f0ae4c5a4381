/*
Package datastore implements the content-addressed blob store (spec.md §4.3,
C3): data streams attached to a Records/Write, scoped to (tenant, recordId)
and reference-counted so resubmitting the same write doesn't duplicate
bytes on disk. dataCid is verified with the Raw-multicodec CID from
pkg/dwncid (crypto/sha256 underneath, the key-derivation-free hash spec.md
§1 names as an external collaborator).

A blob is only ever addressable through the (tenant, recordId) pair it was
written under; pkg/recordversion is the sole caller permitted to look up a
dataCid for a *different* recordId (it returns "not found" either way from
datastore's perspective), which is what makes "reference a dataCid you do
not own" impossible.
*/
package datastore

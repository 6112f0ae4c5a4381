/*
Package didsig defines the two external collaborators spec.md §6 names —
DidResolver and Verifier ("Signer.verify" in the spec's interface table) —
and a default Verifier built on github.com/golang-jwt/jwt/v5's low-level
SigningMethod, since a DWN message's authorization is a detached-payload
compact JWS (protected header + signature, no embedded payload segment),
not the claims-bearing JWT golang-jwt's high-level Parse API expects.

DID resolution itself (did:key, did:ion, did:web, ...) stays an external
collaborator per spec.md §1: StaticResolver here is a minimal in-memory
stand-in suitable for tests and the `dwn apply` CLI path, not a resolution
service.
*/
package didsig

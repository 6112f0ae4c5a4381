/*
Package protocolauth implements the protocol authorization engine (spec.md
§4.7, C7): structural rule resolution, actor/action resolution (owner,
recipient, author, role-record holder), and delegated-grant chain
validation.

It composes pkg/messagestore (to resolve role-record holders and look up
Permissions/Revoke messages) and pkg/recordversion (to walk a record's
ParentId chain for contextId/protocolPath ancestry and to resolve a role
record's current, non-tombstoned state) rather than re-deriving that state
itself — C7 is a policy layer over C2/C6, not a third store.

Delegated-grant signature verification is deliberately NOT done inside this
package: a grant message is itself just a Message, so pkg/dwn verifies its
authorization the same way it verifies any inbound message (via pkg/didsig)
and passes the already-resolved grantor DID in. protocolauth only validates
the chain's structural rules (delegated flag, CID/grantedTo match, scope,
expiry, revocation).
*/
package protocolauth

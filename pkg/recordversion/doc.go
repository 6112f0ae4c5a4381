/*
Package recordversion implements the record version manager (spec.md §4.6,
C6): the per-record state machine `Absent -> InitialOnly -> Updated* ->
Tombstoned`, the sole gatekeeper of the "reference a dataCid you do not own"
data-stream policy, and the (messageTimestamp, MessageCid) total order that
resolves concurrent writes (spec.md §5, §8 property 4).

Per-record state — which of a record's messages is the initial write, which
is currently latest, and whether it carries a tombstone — is kept as a small
CBOR row in its own partition rather than re-derived by scanning
pkg/messagestore on every write, so a conflict check is one Get away.

Pruning a tombstoned record's non-initial writes (spec.md §4.6, §4.9) is
deliberately NOT done inline here: ProcessDelete only performs the
synchronous state transition to Tombstoned. PruneNonInitialWrites is the
idempotent unit of work pkg/tasks resumes across restarts (spec.md scenario
S6), called from the task executor registered in pkg/dwn.
*/
package recordversion

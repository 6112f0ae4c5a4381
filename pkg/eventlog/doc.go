/*
Package eventlog implements the append-only event log (spec.md §4.4, C4):
one watermark-ordered record of every message ever accepted for a tenant,
queryable by the same tag filters as pkg/messagestore and resumable from a
watermark cursor (Events/Query passes its cursor to Query).

Watermarks are ULIDs minted from a per-tenant monotonic entropy source
(github.com/oklog/ulid, the watermark library identified while surveying the
pack's evalgo-org-eve example): same-millisecond appends still produce
strictly increasing, lexicographically sortable identifiers, so a watermark
string is both a resumable cursor and a total order without a central
sequence counter. The composite-key scan itself is pkg/indexenc, shared with
pkg/tagindex.
*/
package eventlog

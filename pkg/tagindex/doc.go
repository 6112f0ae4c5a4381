/*
Package tagindex implements the current-record tag index (spec.md §4.5, C5):
unlike pkg/eventlog, which keeps one entry per message forever, tagindex
keeps exactly one entry per *record* — the tags of its current (latest,
non-tombstoned) state — and atomically replaces that entry on every update.
A RecordsQuery filters against this index, never against the full message
history.

Built on pkg/indexenc, the same composite-key scanner pkg/eventlog uses.
Where eventlog's identifier slot holds a message CID, tagindex's holds the
record's stable recordId: a query hit identifies which record currently
matches, and the caller resolves recordId to its latest RecordsWrite through
pkg/messagestore.
*/
package tagindex

/*
Package indexenc holds the composite-key scheme shared by pkg/eventlog (C4)
and pkg/tagindex (C5): both are "a sorted index of messages keyed by tag
value, with the message CID and append watermark folded into the key so a
single prefix/range scan returns both the matching record and the ordering
needed to resume or sort" (spec.md §4.4, §4.5). Rather than duplicate that
scan loop in two packages, indexenc.Store owns it once against a kv.Partition
and both callers build their tenant/record semantics on top.

Composite keys look like:

	<property>\x00<encodedValue>\x00<watermark>\x00<messageCid>

Encoded values never contain \x00 (pkg/filter.Encode rejects it), so a key
can always be split into exactly property / value / watermark / cid by
splitting on the delimiter from the left after stripping the property
prefix. A companion key (`__<messageCid>__idx`) records the watermark and
the original (undecoded) index map for a given message, so DeleteByCid can
reconstruct and remove every composite key it wrote without a reverse scan.

Equality and AnyOf conditions seek directly on the encoded-value prefix
(`property\x00encodedValue\x00`), which bbolt's cursor makes O(log n) per
seek. Range and startsWith conditions scan the whole per-property
sub-keyspace and apply pkg/filter.InBounds / strings.HasPrefix in memory
instead of constructing a second seek-bound per comparison operator. At
DWN's scale (per-tenant tag cardinality, not a web-scale secondary index)
a bounded linear scan per property is simpler to get right than a second
family of seek-bound arithmetic, and it reuses the exact comparison pkg/filter
already defines as the reference semantics — so the two can never disagree.
*/
package indexenc

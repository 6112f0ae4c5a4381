/*
Package kv provides the ordered KV adapter (spec.md §4.1, C1): a
byte-lexicographic sorted store with range iteration, atomic batches, and
named sub-partitions, backed by go.etcd.io/bbolt (kept from the teacher's
storage package, which already chose bbolt as its embedded engine).

A Partition is a nested bbolt bucket — bbolt's bucket nesting is the
idiomatic Go analogue of the spec's "logically disjoint sub-keyspace": each
partition already has its own cursor and namespace, so tenant isolation and
index-family separation fall directly out of bucket nesting rather than
manual key-prefixing. The reserved `\x00` delimiter byte is still validated
and rejected in caller-supplied key segments for the composite keys C4/C5
build *within* one partition.
*/
package kv

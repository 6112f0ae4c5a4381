/*
Package messagestore implements the message store (spec.md §4.2, C2): the
durable, append-only log of every message ever accepted for a tenant, keyed
by MessageCid, with a secondary index over the fixed field list spec.md §4.2
names (interface, method, protocol, protocolPath, recordId, contextId,
schema, dataFormat, parentId, dateCreated, datePublished, messageTimestamp,
author, recipient, published).

This index is distinct from pkg/tagindex: messagestore indexes every
message version that ever existed (pkg/recordversion removes the
superseded ones explicitly), while tagindex tracks only a record's current
tag state for RecordsQuery. Both share pkg/indexenc's composite-key scanner;
messagestore's watermark slot is filled with the message's own CID (there is
no resumable cursor over this index, so any value that keeps entries
distinct suffices).
*/
package messagestore

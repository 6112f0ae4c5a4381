/*
Package dwn is the composition root (spec.md §4.10, C10): it owns every
subsystem (C1-C9), verifies inbound message signatures via pkg/didsig, and
dispatches by interface/method to the right component sequence.

Dwn is built the way the teacher's manager.Manager is: one constructor wires
every subsystem and returns a single handle; Close tears them down in
reverse dependency order. Records/Subscribe reuses the teacher's
events.Broker/Subscriber shape — a per-tenant broker publishing MessageCid
hits to buffered subscriber channels.

Per-tenant serialization (spec.md §5) is a sync.Mutex held for the duration
of one ProcessMessage call, the same per-resource locking style as the
teacher's Worker.containersMu.
*/
package dwn

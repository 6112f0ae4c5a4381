/*
Package tasks implements the resumable task manager (spec.md §4.9, C9): a
persisted queue of long-running deletions that survives a process restart.

A task is one `{id, name, data, timeout, retryCount}` row in a kv.Partition.
While a task runs, a ticker extends its timeout so a crash does not leave a
task looking "in flight" forever; on the next Open, a startup sweep grabs
every row whose timeout has elapsed and re-executes it. Failure retries
unboundedly; success deletes the row. This is the same ticker+stopCh
lifecycle the teacher's worker.Worker uses for its heartbeat/executor loops
and events.Broker uses for its run loop — Manager reuses that shape for a
different purpose (resuming work, not polling a remote manager).

The only task kind wired in today is RecordsDelete pruning
(recordversion.PruneNonInitialWrites), registered by pkg/dwn via
RegisterHandler rather than imported directly here, so Manager stays a
generic executor over named handlers.
*/
package tasks

/*
Package metrics provides Prometheus metrics and HTTP health endpoints for a
DWN process, adapted from the teacher's cluster-wide metrics package down to
the message-processing surface a DWN actually has.

# Metrics

dwn_messages_processed_total and dwn_message_processing_duration_seconds are
recorded once per ProcessMessage call, labeled by interface/method (and,
for the counter, the reply status code). dwn_tasks_swept_total counts
pkg/tasks handler attempts by outcome, dwn_subscriptions_active and
dwn_events_published_total track pkg/dwn's broker. Handler exposes them for
scraping.

# Health

HealthChecker tracks named components ("kv", "tasks" are the two this
process registers) and exposes /health, /ready, and /live handlers in the
same shape as the teacher's — readiness fails while a critical component
currently reports unhealthy.
*/
package metrics

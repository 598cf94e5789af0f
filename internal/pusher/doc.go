// Package pusher schedules pushes of a metrics source to the gateway.
//
// Run pushes a snapshot every interval; PushOnce serves one-shot (cron-style)
// invocations. Each push is retried with truncated exponential backoff
// (cenkalti/backoff) as long as the failure is transient — gateway 5xx or a
// transport error. Permanent outcomes (4xx, redirects, label collisions)
// abort the attempt immediately, mirroring the fact that resending the same
// payload cannot change them.
//
// With DeleteOnStop set, Run deletes the job's grouping from the gateway on
// shutdown so the last pushed snapshot does not outlive the process.
package pusher

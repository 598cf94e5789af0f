// Package push sends metric snapshots to a Prometheus Pushgateway.
//
// A Client is bound at construction to one job name, an optional grouping key
// and a gateway URL; the request path, credentials and HTTP connection are
// derived once and never change. Add merges metrics into what the gateway
// holds for that group (POST), Replace overwrites it (PUT) and Delete removes
// it (DELETE).
//
// Metrics come from any MetricsSource — a *prometheus.Registry satisfies it
// directly — and are serialized in the text exposition format unless another
// Serializer is configured. Grouping-key values containing '/' (or empty
// values) are carried in the URL path using the gateway's label@base64 form.
//
// The package performs no retries and emits no logs. Every failure surfaces
// as an error matching one of the exported kind sentinels: ErrInvalidArgument,
// ErrInvalidLabelSet, ErrLabelCollision, ErrRedirect, ErrClientError or
// ErrServerError. Transport-level failures (refused connections, timeouts)
// pass through from net/http unclassified.
package push

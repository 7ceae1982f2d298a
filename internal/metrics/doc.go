// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Client connection attempts, reconnect scheduling and backoff delays
//   - Frames received by type and decode failures
//   - Hub sessions, deliveries and authentication failures
//   - Broker event consumption, fan-out traffic and retention
package metrics

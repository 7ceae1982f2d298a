// Package pruner implements notification retention.
//
// The pruner:
//   - Runs once on start, then every retention.interval (default 1h)
//   - Deletes read notifications whose read time is older than retention.max_age
//   - Leaves unread notifications alone regardless of age
package pruner

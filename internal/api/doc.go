// Package api is an HTTP client for a notification server's publish
// endpoint, for services and tools that do not publish through the broker.
//
// Requests carry the server's publish token as a bearer token. 5xx and 429
// responses are retried with jittered exponential backoff.
package api

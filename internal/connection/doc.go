// Package connection implements the reconnecting notification channel.
//
// A Client wraps one physical WebSocket. The Manager owns the logical
// channel for a session:
//   - Authenticates with an auth frame as soon as a socket opens
//   - Sends {"type":"ping"} heartbeats every 30s
//   - Reconnects after unexpected drops with exponential backoff (2s, x1.5, 30s cap)
//   - Ignores callbacks from superseded sockets
//   - Never reconnects after Disconnect or Close
package connection

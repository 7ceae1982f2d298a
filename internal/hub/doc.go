// Package hub is the server end of the notification channel.
//
// Each socket must authenticate with an auth frame before anything else.
// Authenticated sessions receive their unread history, then live frames
// delivered through a per-session queue drained by a single writer.
package hub

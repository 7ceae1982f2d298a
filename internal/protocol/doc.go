// Package protocol defines the JSON frames exchanged over the notification
// WebSocket.
//
// Every frame is an object with a "type" field. Each direction is a closed
// set of Go types behind a sealed interface:
//   - ClientMessage: auth, ping, mark_read, mark_all_read,
//     delete_notification, clear_all_notifications
//   - ServerFrame: notification, job_update, application_update, message,
//     auth_success, auth_error, pong
//
// Frames with a type this build does not know decode to Unknown so that
// receivers can log and skip them.
package protocol

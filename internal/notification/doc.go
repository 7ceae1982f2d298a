// Package notification holds the client-side notification list.
//
// Store keeps records newest-first with an unread counter that is updated in
// the same critical section as the list. Service dispatches server frames
// into the store or into toasts, and applies user actions locally before
// syncing them to the server best-effort.
package notification

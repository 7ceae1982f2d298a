package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// Routing keys of the domain events the server understands.
const (
	KeyNotificationCreated = "notification.created"
	KeyJobUpdated          = "job.updated"
	KeyApplicationUpdated  = "application.updated"
	KeyMessageCreated      = "message.created"
)

var (
	// ErrUnknownEvent is returned for routing keys with no translation.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrInvalidEvent is returned for payloads that can never be processed.
	ErrInvalidEvent = errors.New("invalid event")
)

// Inserter persists a notification and returns the stored record.
type Inserter interface {
	Insert(ctx context.Context, userID string, n protocol.Notification) (protocol.Notification, error)
}

// Publisher sends a frame to a user's sessions.
type Publisher interface {
	Publish(ctx context.Context, userID string, frame protocol.ServerFrame) error
}

type notificationCreated struct {
	UserID       string                `json:"userId"`
	Notification protocol.Notification `json:"notification"`
}

type jobUpdated struct {
	UserID string `json:"userId"`
	protocol.JobUpdate
}

type applicationUpdated struct {
	UserID string `json:"userId"`
	protocol.ApplicationUpdate
}

type messageCreated struct {
	UserID string `json:"userId"`
	protocol.DirectMessage
}

// Router turns domain events into frames for users.
type Router struct {
	store  Inserter
	pub    Publisher
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(store Inserter, pub Publisher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{store: store, pub: pub, logger: logger}
}

// Translate decodes an event body into its recipient and frame.
func Translate(routingKey string, body []byte) (string, protocol.ServerFrame, error) {
	var (
		userID string
		frame  protocol.ServerFrame
		err    error
	)

	switch routingKey {
	case KeyNotificationCreated:
		var e notificationCreated
		err = json.Unmarshal(body, &e)
		userID, frame = e.UserID, protocol.NotificationFrame{Notification: e.Notification}
		if err == nil && e.Notification.Message == "" {
			err = errors.New("notification.message is required")
		}
	case KeyJobUpdated:
		var e jobUpdated
		err = json.Unmarshal(body, &e)
		userID, frame = e.UserID, e.JobUpdate
	case KeyApplicationUpdated:
		var e applicationUpdated
		err = json.Unmarshal(body, &e)
		userID, frame = e.UserID, e.ApplicationUpdate
	case KeyMessageCreated:
		var e messageCreated
		err = json.Unmarshal(body, &e)
		userID, frame = e.UserID, e.DirectMessage
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownEvent, routingKey)
	}

	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrInvalidEvent, routingKey, err)
	}
	if userID == "" {
		return "", nil, fmt.Errorf("%w: %s: userId is required", ErrInvalidEvent, routingKey)
	}
	return userID, frame, nil
}

// Handle translates, persists and publishes one event. It returns the frame
// that was published.
func (r *Router) Handle(ctx context.Context, routingKey string, body []byte) (protocol.ServerFrame, error) {
	userID, frame, err := Translate(routingKey, body)
	if err != nil {
		return nil, err
	}

	if nf, ok := frame.(protocol.NotificationFrame); ok {
		stored, err := r.Notify(ctx, userID, nf.Notification)
		if err != nil {
			return nil, err
		}
		return protocol.NotificationFrame{Notification: stored}, nil
	}

	if err := r.pub.Publish(ctx, userID, frame); err != nil {
		return nil, fmt.Errorf("publish %s: %w", frame.FrameType(), err)
	}
	return frame, nil
}

// Notify stores n for userID and pushes it to the user's sessions. The
// stored copy carries the id clients use to mark or delete it.
//
// A push failure after a successful insert is logged, not returned. Replay
// delivers the record; a retry would store it twice.
func (r *Router) Notify(ctx context.Context, userID string, n protocol.Notification) (protocol.Notification, error) {
	n.Read = false
	stored, err := r.store.Insert(ctx, userID, n)
	if err != nil {
		return protocol.Notification{}, fmt.Errorf("store notification: %w", err)
	}

	if err := r.pub.Publish(ctx, userID, protocol.NotificationFrame{Notification: stored}); err != nil {
		r.logger.Warn("notification stored but not pushed",
			"id", stored.ID,
			"user_id", userID,
			"error", err,
		)
		return stored, nil
	}

	r.logger.Debug("notification published", "id", stored.ID, "user_id", userID, "level", stored.Type)
	return stored, nil
}

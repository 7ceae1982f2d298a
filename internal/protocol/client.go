package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ClientMessage is a frame sent from a client to the server.
type ClientMessage interface {
	Frame
	clientMessage()
}

// Auth identifies the user on a freshly opened connection.
type Auth struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Ping is the keep-alive heartbeat.
type Ping struct{}

// MarkRead marks one notification as read.
type MarkRead struct {
	NotificationID string `json:"notificationId"`
}

// MarkAllRead marks every notification as read.
type MarkAllRead struct{}

// DeleteNotification removes one notification.
type DeleteNotification struct {
	NotificationID string `json:"notificationId"`
}

// ClearAllNotifications removes every notification.
type ClearAllNotifications struct{}

func (Auth) FrameType() Type                  { return TypeAuth }
func (Ping) FrameType() Type                  { return TypePing }
func (MarkRead) FrameType() Type              { return TypeMarkRead }
func (MarkAllRead) FrameType() Type           { return TypeMarkAllRead }
func (DeleteNotification) FrameType() Type    { return TypeDeleteNotification }
func (ClearAllNotifications) FrameType() Type { return TypeClearAllNotifications }

func (Auth) clientMessage()                  {}
func (Ping) clientMessage()                  {}
func (MarkRead) clientMessage()              {}
func (MarkAllRead) clientMessage()           {}
func (DeleteNotification) clientMessage()    {}
func (ClearAllNotifications) clientMessage() {}

func (m Auth) MarshalJSON() ([]byte, error) {
	type body Auth
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeAuth, body(m)})
}

func (Ping) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"ping"}`), nil
}

func (m MarkRead) MarshalJSON() ([]byte, error) {
	type body MarkRead
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeMarkRead, body(m)})
}

func (MarkAllRead) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"mark_all_read"}`), nil
}

func (m DeleteNotification) MarshalJSON() ([]byte, error) {
	type body DeleteNotification
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeDeleteNotification, body(m)})
}

func (ClearAllNotifications) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"clear_all_notifications"}`), nil
}

// DecodeClientMessage parses a client → server frame.
// Unrecognised types decode to Unknown without error.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}

	var m ClientMessage
	switch t {
	case TypeAuth:
		var v Auth
		err = json.Unmarshal(data, &v)
		m = v
	case TypePing:
		m = Ping{}
	case TypeMarkRead:
		var v MarkRead
		err = json.Unmarshal(data, &v)
		m = v
	case TypeMarkAllRead:
		m = MarkAllRead{}
	case TypeDeleteNotification:
		var v DeleteNotification
		err = json.Unmarshal(data, &v)
		m = v
	case TypeClearAllNotifications:
		m = ClearAllNotifications{}
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: t, Raw: raw}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, errors.Join(ErrMalformed, err))
	}
	return m, nil
}

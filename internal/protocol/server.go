package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ServerFrame is a frame sent from the server to a client.
type ServerFrame interface {
	Frame
	serverFrame()
}

// NotificationFrame delivers a new notification record.
type NotificationFrame struct {
	Notification Notification `json:"notification"`
}

// JobUpdate reports a change to a job posting.
type JobUpdate struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// ApplicationUpdate reports a change to a job application.
type ApplicationUpdate struct {
	ApplicationID string `json:"applicationId"`
	JobID         string `json:"jobId,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message"`
}

// DirectMessage is a chat-style message from another user.
type DirectMessage struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// AuthSuccess acknowledges an auth message.
type AuthSuccess struct {
	UserID string `json:"userId"`
}

// AuthError rejects an auth message.
type AuthError struct {
	Error string `json:"error"`
}

// Pong answers a ping.
type Pong struct{}

func (NotificationFrame) FrameType() Type { return TypeNotification }
func (JobUpdate) FrameType() Type         { return TypeJobUpdate }
func (ApplicationUpdate) FrameType() Type { return TypeApplicationUpdate }
func (DirectMessage) FrameType() Type     { return TypeMessage }
func (AuthSuccess) FrameType() Type       { return TypeAuthSuccess }
func (AuthError) FrameType() Type         { return TypeAuthError }
func (Pong) FrameType() Type              { return TypePong }

func (NotificationFrame) serverFrame() {}
func (JobUpdate) serverFrame()         {}
func (ApplicationUpdate) serverFrame() {}
func (DirectMessage) serverFrame()     {}
func (AuthSuccess) serverFrame()       {}
func (AuthError) serverFrame()         {}
func (Pong) serverFrame()              {}

func (f NotificationFrame) MarshalJSON() ([]byte, error) {
	type body NotificationFrame
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeNotification, body(f)})
}

func (f JobUpdate) MarshalJSON() ([]byte, error) {
	type body JobUpdate
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeJobUpdate, body(f)})
}

func (f ApplicationUpdate) MarshalJSON() ([]byte, error) {
	type body ApplicationUpdate
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeApplicationUpdate, body(f)})
}

func (f DirectMessage) MarshalJSON() ([]byte, error) {
	type body DirectMessage
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeMessage, body(f)})
}

func (f AuthSuccess) MarshalJSON() ([]byte, error) {
	type body AuthSuccess
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeAuthSuccess, body(f)})
}

func (f AuthError) MarshalJSON() ([]byte, error) {
	type body AuthError
	return json.Marshal(struct {
		Type Type `json:"type"`
		body
	}{TypeAuthError, body(f)})
}

func (Pong) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"pong"}`), nil
}

// DecodeServerFrame parses a server → client frame.
// Unrecognised types decode to Unknown without error.
func DecodeServerFrame(data []byte) (ServerFrame, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}

	var f ServerFrame
	switch t {
	case TypeNotification:
		var v NotificationFrame
		err = json.Unmarshal(data, &v)
		f = v
	case TypeJobUpdate:
		var v JobUpdate
		err = json.Unmarshal(data, &v)
		f = v
	case TypeApplicationUpdate:
		var v ApplicationUpdate
		err = json.Unmarshal(data, &v)
		f = v
	case TypeMessage:
		var v DirectMessage
		err = json.Unmarshal(data, &v)
		f = v
	case TypeAuthSuccess:
		var v AuthSuccess
		err = json.Unmarshal(data, &v)
		f = v
	case TypeAuthError:
		var v AuthError
		err = json.Unmarshal(data, &v)
		f = v
	case TypePong:
		f = Pong{}
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: t, Raw: raw}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, errors.Join(ErrMalformed, err))
	}
	return f, nil
}

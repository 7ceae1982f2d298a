package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformed is returned when a frame is not a JSON object with a string type.
var ErrMalformed = errors.New("malformed frame")

// Type is the value of the "type" field that tags every frame.
type Type string

// Client → server types.
const (
	TypeAuth                  Type = "auth"
	TypePing                  Type = "ping"
	TypeMarkRead              Type = "mark_read"
	TypeMarkAllRead           Type = "mark_all_read"
	TypeDeleteNotification    Type = "delete_notification"
	TypeClearAllNotifications Type = "clear_all_notifications"
)

// Server → client types.
const (
	TypeNotification      Type = "notification"
	TypeJobUpdate         Type = "job_update"
	TypeApplicationUpdate Type = "application_update"
	TypeMessage           Type = "message"
	TypeAuthSuccess       Type = "auth_success"
	TypeAuthError         Type = "auth_error"
	TypePong              Type = "pong"
)

// Level classifies a notification and controls how it is displayed.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelError, LevelWarning:
		return true
	}
	return false
}

// Notification is a single notification record.
type Notification struct {
	ID        string          `json:"id"`
	Type      Level           `json:"type"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read"`
	Data      json.RawMessage `json:"data,omitempty"` // Opaque navigation payload (job id, application id, ...)
}

// envelope is used to peek at the type before decoding the full frame.
type envelope struct {
	Type *Type `json:"type"`
}

func peekType(data []byte) (Type, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", errors.Join(ErrMalformed, err)
	}
	if env.Type == nil || *env.Type == "" {
		return "", ErrMalformed
	}
	return *env.Type, nil
}

// Unknown holds a well-formed frame whose type this build does not recognise.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

func (u Unknown) FrameType() Type { return u.Type }
func (Unknown) serverFrame()      {}
func (Unknown) clientMessage()    {}

// MarshalJSON returns the original bytes.
func (u Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{u.Type})
	}
	return u.Raw, nil
}

// Frame is implemented by every frame in either direction.
type Frame interface {
	FrameType() Type
}

// Encode serializes a frame with its type tag.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

package connection

import (
	"errors"
	"time"

	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL            string        // WebSocket URL (e.g., wss://portal.example.com:5000/ws)
	UserAgent      string        // Sent as User-Agent in the handshake
	ConnectTimeout time.Duration // Handshake timeout
	PingInterval   time.Duration // Interval between {"type":"ping"} heartbeats
	WriteTimeout   time.Duration // Write deadline for sends
	BufferSize     int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		WriteTimeout:   5 * time.Second,
		BufferSize:     256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client           ClientConfig
	ReconnectInitial time.Duration // First reconnect delay
	ReconnectFactor  float64       // Delay multiplier per failed attempt
	ReconnectMax     time.Duration // Delay cap
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:           DefaultClientConfig(),
		ReconnectInitial: 2 * time.Second,
		ReconnectFactor:  1.5,
		ReconnectMax:     30 * time.Second,
	}
}

// Session identifies the authenticated user the channel belongs to.
type Session struct {
	UserID string
	Token  string
}

// Valid reports whether the session can be used to open a channel.
func (s Session) Valid() bool {
	return s.UserID != ""
}

// ClientFactory builds a fresh Client for each connection attempt.
type ClientFactory func(cfg ClientConfig) Client

// FrameHandler receives decoded server frames in transport order.
type FrameHandler func(frame protocol.ServerFrame)

// State is the lifecycle state of the logical channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnectScheduled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnectScheduled:
		return "reconnect_scheduled"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State      State
	Attempts   int64         // Connection attempts since creation
	Reconnects int64         // Reconnect timers armed since creation
	NextDelay  time.Duration // Delay the next scheduled reconnect would use
}

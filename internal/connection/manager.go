package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/jobportal-notify/internal/backoff"
	"github.com/rickgao/jobportal-notify/internal/metrics"
	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// Manager owns the reconnecting notification channel for one session.
//
// No method returns transport errors. Failures become reconnects, log lines,
// or a false return from Send.
type Manager interface {
	// Connect opens the channel if it is not already open or opening.
	Connect()

	// Disconnect closes the channel without scheduling a reconnect.
	// A later Connect may reopen it.
	Disconnect()

	// ReconnectNow drops the current socket and reconnects immediately
	// with a fresh backoff.
	ReconnectNow()

	// Send writes msg if the channel is open. It reports whether the
	// message was written.
	Send(msg protocol.ClientMessage) bool

	// SetSession switches the channel to a different user.
	SetSession(s Session)

	// Close tears the manager down permanently and waits for its goroutines.
	Close() error

	// State returns the current channel state.
	State() State

	// Stats returns current channel statistics.
	Stats() ManagerStats
}

// link is one physical connection owned by the manager.
type link struct {
	client Client
	gen    uint64
	cancel context.CancelFunc // Aborts an in-flight dial
	stop   chan struct{}      // Closed when the manager abandons this link
}

// manager implements the Manager interface.
type manager struct {
	cfg     ManagerConfig
	factory ClientFactory
	handler FrameHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	session     Session
	state       State
	gen         uint64 // Bumped for every attempt and teardown; stale callbacks compare against it
	link        *link
	timer       *time.Timer
	backoff     *backoff.Backoff
	tearingDown bool
	attempts    int64
	reconnects  int64
}

// NewManager creates a new Connection Manager. A nil factory dials real
// WebSocket clients; a nil handler discards frames.
func NewManager(cfg ManagerConfig, session Session, factory ClientFactory, handler FrameHandler, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = func(cc ClientConfig) Client { return NewClient(cc, logger) }
	}
	if handler == nil {
		handler = func(protocol.ServerFrame) {}
	}
	if cfg.Client.ConnectTimeout <= 0 {
		cfg.Client.ConnectTimeout = DefaultClientConfig().ConnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &manager{
		cfg:     cfg,
		factory: factory,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		session: session,
		state:   StateIdle,
		backoff: backoff.New(cfg.ReconnectInitial, cfg.ReconnectFactor, cfg.ReconnectMax),
	}
}

// Connect starts an attempt unless one is pending or the channel is open.
func (m *manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tearingDown || !m.session.Valid() {
		return
	}
	if m.state == StateConnecting || m.state == StateOpen {
		return
	}

	m.stopTimerLocked()
	m.startAttemptLocked()
}

// Disconnect closes the channel cleanly.
func (m *manager) Disconnect() {
	m.mu.Lock()
	if m.tearingDown {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.gen++
	l := m.detachLocked()
	m.state = StateClosed
	m.mu.Unlock()

	closeLink(l)
	m.logger.Info("notification channel disconnected")
}

// ReconnectNow resets the backoff and attempts immediately.
func (m *manager) ReconnectNow() {
	m.mu.Lock()
	if m.tearingDown || !m.session.Valid() {
		m.mu.Unlock()
		return
	}
	m.backoff.Reset()
	m.stopTimerLocked()
	l := m.detachLocked()
	m.startAttemptLocked()
	m.mu.Unlock()

	closeLink(l)
}

// SetSession replaces the session. An active channel is reopened for the
// new user; an empty session closes it.
func (m *manager) SetSession(s Session) {
	m.mu.Lock()
	if m.tearingDown || s == m.session {
		m.mu.Unlock()
		return
	}
	m.session = s
	active := m.state != StateIdle && m.state != StateClosed
	m.mu.Unlock()

	if !s.Valid() {
		m.Disconnect()
		return
	}
	if active {
		m.ReconnectNow()
	}
}

// Send encodes and writes msg when the channel is open.
func (m *manager) Send(msg protocol.ClientMessage) bool {
	m.mu.Lock()
	if m.state != StateOpen || m.link == nil {
		m.mu.Unlock()
		metrics.ClientSendFailures.WithLabelValues(string(msg.FrameType())).Inc()
		return false
	}
	c := m.link.client
	m.mu.Unlock()

	data, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Error("encode client message", "type", msg.FrameType(), "error", err)
		metrics.ClientSendFailures.WithLabelValues(string(msg.FrameType())).Inc()
		return false
	}

	if err := c.Send(data); err != nil {
		m.logger.Debug("send failed", "type", msg.FrameType(), "error", err)
		metrics.ClientSendFailures.WithLabelValues(string(msg.FrameType())).Inc()
		return false
	}
	return true
}

// Close permanently tears down the manager.
func (m *manager) Close() error {
	m.mu.Lock()
	if m.tearingDown {
		m.mu.Unlock()
		return nil
	}
	m.tearingDown = true
	m.stopTimerLocked()
	m.gen++
	l := m.detachLocked()
	m.state = StateClosed
	m.cancel()
	m.mu.Unlock()

	closeLink(l)
	m.wg.Wait()

	m.logger.Info("connection manager stopped")
	return nil
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:      m.state,
		Attempts:   m.attempts,
		Reconnects: m.reconnects,
		NextDelay:  m.backoff.Peek(),
	}
}

// startAttemptLocked builds a client and dials it in the background.
// Caller must hold m.mu.
func (m *manager) startAttemptLocked() {
	m.gen++
	m.attempts++
	m.state = StateConnecting

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.Client.ConnectTimeout)
	l := &link{
		client: m.factory(m.cfg.Client),
		gen:    m.gen,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
	m.link = l
	session := m.session

	m.wg.Add(1)
	go m.dial(ctx, l, session)
}

// dial runs one connection attempt.
func (m *manager) dial(ctx context.Context, l *link, session Session) {
	defer m.wg.Done()
	defer l.cancel()

	err := l.client.Connect(ctx)
	if err == nil {
		// Authenticate before the channel is marked open so auth is
		// always the first frame on the socket.
		err = m.authenticate(l.client, session)
	}

	m.mu.Lock()
	if l.gen != m.gen || m.tearingDown {
		m.mu.Unlock()
		l.client.Close()
		return
	}

	if err != nil {
		metrics.ClientConnectAttempts.WithLabelValues("failure").Inc()
		m.logger.Warn("connect failed", "url", m.cfg.Client.URL, "error", err)
		m.link = nil
		m.state = StateIdle
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		l.client.Close()
		return
	}

	metrics.ClientConnectAttempts.WithLabelValues("success").Inc()
	m.state = StateOpen
	m.backoff.Reset()
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("notification channel open", "url", m.cfg.Client.URL, "user_id", session.UserID)

	go m.readLoop(l)
}

func (m *manager) authenticate(c Client, session Session) error {
	data, err := protocol.Encode(protocol.Auth{UserID: session.UserID, Token: session.Token})
	if err != nil {
		return err
	}
	return c.Send(data)
}

// readLoop dispatches frames from one link until it drops or is abandoned.
func (m *manager) readLoop(l *link) {
	defer m.wg.Done()

	for {
		select {
		case <-l.stop:
			return
		case msg := <-l.client.Messages():
			m.dispatch(msg)
		case err := <-l.client.Errors():
			m.drain(l)
			m.handleDrop(l, err)
			return
		}
	}
}

// drain dispatches frames that were buffered before the link failed.
func (m *manager) drain(l *link) {
	for {
		select {
		case msg := <-l.client.Messages():
			m.dispatch(msg)
		default:
			return
		}
	}
}

func (m *manager) dispatch(msg TimestampedMessage) {
	frame, err := protocol.DecodeServerFrame(msg.Data)
	if err != nil {
		metrics.ClientDecodeErrors.Inc()
		m.logger.Warn("failed to decode server frame", "error", err, "size", len(msg.Data))
		return
	}
	metrics.ClientFramesReceived.WithLabelValues(string(frame.FrameType())).Inc()
	m.handler(frame)
}

// handleDrop reacts to a link failing underneath the manager.
func (m *manager) handleDrop(l *link, err error) {
	m.mu.Lock()
	if l.gen != m.gen || m.tearingDown || m.link != l {
		m.mu.Unlock()
		return
	}
	m.link = nil
	close(l.stop)

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		m.state = StateClosed
		m.mu.Unlock()
		l.client.Close()
		m.logger.Info("server closed notification channel")
		return
	}

	m.state = StateIdle
	m.logger.Warn("notification channel dropped", "error", err)
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	l.client.Close()
}

// scheduleReconnectLocked arms the reconnect timer. Caller must hold m.mu.
func (m *manager) scheduleReconnectLocked() {
	if m.tearingDown || !m.session.Valid() {
		return
	}

	delay := m.backoff.Next()
	gen := m.gen
	m.state = StateReconnectScheduled
	m.reconnects++
	m.timer = time.AfterFunc(delay, func() { m.fire(gen) })

	metrics.ClientReconnectsScheduled.Inc()
	metrics.ClientReconnectDelay.Observe(delay.Seconds())
	m.logger.Info("reconnect scheduled", "delay", delay)
}

// fire runs when a reconnect timer expires.
func (m *manager) fire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.tearingDown || m.state != StateReconnectScheduled {
		return
	}
	m.timer = nil
	m.startAttemptLocked()
}

func (m *manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// detachLocked abandons the current link and returns it for closing
// outside the lock. Caller must hold m.mu.
func (m *manager) detachLocked() *link {
	l := m.link
	if l == nil {
		return nil
	}
	m.link = nil
	l.cancel()
	close(l.stop)
	return l
}

func closeLink(l *link) {
	if l != nil {
		l.client.Close()
	}
}

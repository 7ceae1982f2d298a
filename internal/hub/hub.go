package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/metrics"
	"github.com/rickgao/jobportal-notify/internal/protocol"
	"github.com/rickgao/jobportal-notify/internal/repository"
)

// Store is the notification history the hub replays and mutates.
type Store interface {
	ListUnread(ctx context.Context, userID string, limit int) ([]protocol.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// Verifier resolves a session token to a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// Publisher distributes a frame to every instance, including this one.
type Publisher interface {
	Publish(ctx context.Context, userID string, frame protocol.ServerFrame) error
}

// Hub accepts notification sockets and delivers frames to authenticated users.
type Hub struct {
	cfg      config.HubConfig
	store    Store
	verifier Verifier
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}
	fanout   Publisher
	closed   bool

	wg sync.WaitGroup
}

// New creates a Hub. A nil store disables replay and ignores client
// mutations.
func New(cfg config.HubConfig, store Store, verifier Verifier, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			// Browsers on the portal origin and CLI clients both connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]map[*session]struct{}),
	}
}

// SetFanout routes Publish through p instead of delivering locally.
func (h *Hub) SetFanout(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanout = p
}

// ServeHTTP upgrades the request and runs the session until it ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	h.serve(r.Context(), conn)
}

// Deliver queues frame on every local session of userID and returns the
// number of sessions reached.
func (h *Hub) Deliver(userID string, frame protocol.ServerFrame) int {
	data, err := protocol.Encode(frame)
	if err != nil {
		h.logger.Error("encode frame", "type", frame.FrameType(), "error", err)
		return 0
	}
	return h.DeliverRaw(userID, frame.FrameType(), data)
}

// DeliverRaw queues an already encoded frame on every local session of userID.
func (h *Hub) DeliverRaw(userID string, typ protocol.Type, data []byte) int {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[userID]))
	for s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	n := 0
	for _, s := range targets {
		if s.queue.Push(data) {
			n++
		}
	}
	if n > 0 {
		metrics.HubFramesDelivered.WithLabelValues(string(typ)).Add(float64(n))
	}
	return n
}

// Publish sends frame to userID on every instance when a fan-out is
// configured, and to local sessions otherwise.
func (h *Hub) Publish(ctx context.Context, userID string, frame protocol.ServerFrame) error {
	h.mu.RLock()
	fanout := h.fanout
	h.mu.RUnlock()

	if fanout != nil {
		return fanout.Publish(ctx, userID, frame)
	}
	h.Deliver(userID, frame)
	return nil
}

// SessionCount returns the number of local sessions for userID, or across
// all users when userID is empty.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if userID != "" {
		return len(h.sessions[userID])
	}
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// Close ends every session with a going-away close so clients reconnect
// elsewhere, then waits for their goroutines.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	var all []*session
	for _, set := range h.sessions {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub stopped", "sessions_closed", len(all))
		return nil
	case <-ctx.Done():
		h.logger.Warn("hub stop timed out")
		return ctx.Err()
	}
}

func (h *Hub) register(s *session) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	set, ok := h.sessions[s.userID]
	if !ok {
		set = make(map[*session]struct{})
		h.sessions[s.userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	metrics.HubSessions.Inc()
	return true
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	if set, ok := h.sessions[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.userID)
		}
	}
	h.mu.Unlock()

	metrics.HubSessions.Dec()
}

// serve runs one connection: authentication, replay, then the read loop.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	userID, ok := h.authenticate(conn)
	if !ok {
		return
	}

	s := newSession(h, conn, userID)
	if !h.register(s) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer h.unregister(s)

	go s.writeLoop()
	// 1000 would tell the client not to reconnect.
	defer s.close(websocket.CloseGoingAway, "")

	s.enqueue(protocol.AuthSuccess{UserID: userID})
	h.replay(ctx, s)

	h.logger.Info("session authenticated", "user_id", userID, "remote", conn.RemoteAddr().String())

	s.readLoop(ctx)
}

// authenticate reads the first frame, which must be a valid auth message.
func (h *Hub) authenticate(conn *websocket.Conn) (string, bool) {
	conn.SetReadDeadline(time.Now().Add(h.cfg.AuthTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		reason := "read_error"
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			reason = "timeout"
		}
		metrics.HubAuthFailures.WithLabelValues(reason).Inc()
		h.logger.Debug("no auth frame", "reason", reason, "error", err)
		return "", false
	}

	msg, err := protocol.DecodeClientMessage(data)
	auth, isAuth := msg.(protocol.Auth)
	if err != nil || !isAuth {
		h.rejectAuth(conn, "malformed", "authentication required")
		return "", false
	}

	userID, err := h.verifier.Verify(auth.Token)
	if err != nil {
		h.rejectAuth(conn, "invalid_token", "invalid token")
		return "", false
	}
	if userID != auth.UserID {
		h.rejectAuth(conn, "user_mismatch", "token does not match user")
		return "", false
	}

	conn.SetReadDeadline(time.Time{})
	return userID, true
}

// rejectAuth writes auth_error directly; no writer goroutine exists yet.
func (h *Hub) rejectAuth(conn *websocket.Conn, reason, message string) {
	metrics.HubAuthFailures.WithLabelValues(reason).Inc()
	h.logger.Info("authentication rejected", "reason", reason, "remote", conn.RemoteAddr().String())

	data, err := protocol.Encode(protocol.AuthError{Error: message})
	if err != nil {
		return
	}
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), deadline)
}

// replay sends unread history oldest first, so a client that prepends ends
// up newest first.
func (h *Hub) replay(ctx context.Context, s *session) {
	if h.cfg.ReplayLimit <= 0 || h.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.AuthTimeout)
	defer cancel()

	unread, err := h.store.ListUnread(ctx, s.userID, h.cfg.ReplayLimit)
	if err != nil {
		h.logger.Warn("replay failed", "user_id", s.userID, "error", err)
		return
	}
	for i := len(unread) - 1; i >= 0; i-- {
		s.enqueue(protocol.NotificationFrame{Notification: unread[i]})
	}
}

// handle applies one client message from an authenticated session.
func (h *Hub) handle(ctx context.Context, s *session, msg protocol.ClientMessage) {
	var err error

	switch msg.(type) {
	case protocol.MarkRead, protocol.MarkAllRead, protocol.DeleteNotification, protocol.ClearAllNotifications:
		if h.store == nil {
			h.logger.Debug("no store, ignoring client message", "type", msg.FrameType(), "user_id", s.userID)
			metrics.HubClientMessages.WithLabelValues(string(msg.FrameType()), "skipped").Inc()
			return
		}
	}

	switch m := msg.(type) {
	case protocol.Ping:
		s.enqueue(protocol.Pong{})
	case protocol.MarkRead:
		err = h.store.MarkRead(ctx, s.userID, m.NotificationID)
	case protocol.MarkAllRead:
		_, err = h.store.MarkAllRead(ctx, s.userID)
	case protocol.DeleteNotification:
		err = h.store.Delete(ctx, s.userID, m.NotificationID)
	case protocol.ClearAllNotifications:
		_, err = h.store.DeleteAll(ctx, s.userID)
	case protocol.Auth:
		h.logger.Debug("ignoring repeated auth", "user_id", s.userID)
	case protocol.Unknown:
		h.logger.Warn("unknown client message", "type", m.Type, "user_id", s.userID)
		metrics.HubClientMessages.WithLabelValues("unknown", "skipped").Inc()
		return
	}

	result := "ok"
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
		h.logger.Error("client message failed", "type", msg.FrameType(), "user_id", s.userID, "error", err)
	}
	metrics.HubClientMessages.WithLabelValues(string(msg.FrameType()), result).Inc()
}

package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/jobportal-notify/internal/metrics"
	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// storeTimeout bounds each repository call made for a client message.
const storeTimeout = 5 * time.Second

// session is one authenticated socket.
type session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	queue  *sendQueue

	writerDone chan struct{}
	closeOnce  sync.Once
}

func newSession(h *Hub, conn *websocket.Conn, userID string) *session {
	return &session{
		hub:        h,
		conn:       conn,
		userID:     userID,
		queue:      newSendQueue(h.cfg.QueueSize),
		writerDone: make(chan struct{}),
	}
}

// enqueue encodes and queues a frame for this session only.
func (s *session) enqueue(frame protocol.ServerFrame) {
	data, err := protocol.Encode(frame)
	if err != nil {
		s.hub.logger.Error("encode frame", "type", frame.FrameType(), "error", err)
		return
	}
	if s.queue.Push(data) {
		metrics.HubFramesDelivered.WithLabelValues(string(frame.FrameType())).Inc()
	}
}

// writeLoop is the only writer of data frames on the connection.
func (s *session) writeLoop() {
	defer close(s.writerDone)

	for {
		data, ok := s.queue.Pop()
		if !ok {
			return
		}
		if s.hub.cfg.WriteTimeout > 0 {
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteTimeout))
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.hub.logger.Debug("session write failed", "user_id", s.userID, "error", err)
			// Unblocks the read loop so the session ends.
			s.conn.Close()
			return
		}
	}
}

// readLoop handles client messages until the socket fails.
func (s *session) readLoop(ctx context.Context) {
	for {
		if s.hub.cfg.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.hub.cfg.ReadTimeout))
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.hub.logger.Debug("session read ended", "user_id", s.userID, "error", err)
			}
			return
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			s.hub.logger.Warn("malformed client message", "user_id", s.userID, "error", err)
			metrics.HubClientMessages.WithLabelValues("malformed", "error").Inc()
			continue
		}

		opCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		s.hub.handle(opCtx, s, msg)
		cancel()
	}
}

// close drains queued frames, sends a close frame and closes the socket.
func (s *session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.queue.Close()
		<-s.writerDone

		deadline := time.Now().Add(time.Second)
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.conn.Close()
	})
}

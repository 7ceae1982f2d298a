package notification

import (
	"log/slog"

	"github.com/rickgao/jobportal-notify/internal/protocol"
	"github.com/rickgao/jobportal-notify/internal/toast"
)

// Sender transmits a client message. It returns false when the message
// could not be sent, e.g. because the connection is not open.
type Sender interface {
	Send(msg protocol.ClientMessage) bool
}

// SenderFunc is a function adapter for Sender.
type SenderFunc func(protocol.ClientMessage) bool

func (f SenderFunc) Send(msg protocol.ClientMessage) bool {
	return f(msg)
}

// Service applies server frames and user actions to a Store.
//
// Local state is authoritative: user actions mutate the store first and
// then notify the server best-effort. A failed send is logged, never
// rolled back.
type Service struct {
	store    *Store
	sender   Sender
	notifier toast.Notifier
	logger   *slog.Logger

	onChange func(Snapshot)
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets where toasts go. Defaults to toast.Discard.
func WithNotifier(n toast.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithOnChange registers a callback invoked with a snapshot after every
// store mutation.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Service) {
		s.onChange = fn
	}
}

// NewService creates a Service. sender may be nil, in which case nothing is
// sent to the server.
func NewService(store *Store, sender Sender, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sender:   sender,
		notifier: toast.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSender replaces the sender. Used when the sender is built after the
// service, as the connection manager is.
func (s *Service) SetSender(sender Sender) {
	s.sender = sender
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

// HandleFrame dispatches one server frame.
func (s *Service) HandleFrame(f protocol.ServerFrame) {
	switch f := f.(type) {
	case protocol.NotificationFrame:
		n, added := s.store.Add(f.Notification)
		if !added {
			s.logger.Debug("duplicate notification ignored", "id", n.ID)
			return
		}
		s.notifier.Toast(toast.Toast{
			Level:   toast.ParseLevel(string(n.Type)),
			Message: n.Message,
			At:      n.Timestamp,
		})
		s.changed()

	case protocol.JobUpdate:
		s.notifier.Toast(toast.Toast{
			Level:   toast.Info,
			Title:   "Job update",
			Message: f.Message,
		})

	case protocol.ApplicationUpdate:
		s.notifier.Toast(toast.Toast{
			Level:   applicationLevel(f.Status),
			Title:   "Application update",
			Message: f.Message,
		})

	case protocol.DirectMessage:
		title := "New message"
		if f.From != "" {
			title = "Message from " + f.From
		}
		s.notifier.Toast(toast.Toast{
			Level:   toast.Info,
			Title:   title,
			Message: f.Message,
		})

	case protocol.AuthSuccess:
		s.logger.Info("notification channel authenticated", "user_id", f.UserID)

	case protocol.AuthError:
		s.logger.Error("notification channel authentication failed", "error", f.Error)

	case protocol.Pong:
		s.logger.Debug("pong received")

	case protocol.Unknown:
		s.logger.Warn("unknown frame type ignored", "type", f.Type)

	default:
		s.logger.Warn("unhandled frame", "type", f.FrameType())
	}
}

// MarkAsRead marks one notification read and tells the server.
func (s *Service) MarkAsRead(id string) bool {
	if !s.store.MarkAsRead(id) {
		return false
	}
	s.changed()
	s.send(protocol.MarkRead{NotificationID: id})
	return true
}

// MarkAllAsRead marks every notification read and tells the server.
func (s *Service) MarkAllAsRead() int {
	n := s.store.MarkAllAsRead()
	s.changed()
	s.send(protocol.MarkAllRead{})
	return n
}

// Delete removes one notification and tells the server.
func (s *Service) Delete(id string) bool {
	if !s.store.Delete(id) {
		return false
	}
	s.changed()
	s.send(protocol.DeleteNotification{NotificationID: id})
	return true
}

// ClearAll removes every notification and tells the server.
func (s *Service) ClearAll() int {
	n := s.store.ClearAll()
	s.changed()
	s.send(protocol.ClearAllNotifications{})
	return n
}

func (s *Service) send(msg protocol.ClientMessage) {
	if s.sender == nil {
		return
	}
	if !s.sender.Send(msg) {
		s.logger.Warn("server sync skipped, channel not open", "type", msg.FrameType())
	}
}

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange(s.store.Snapshot())
	}
}

func applicationLevel(status string) toast.Level {
	switch status {
	case "accepted", "hired", "shortlisted":
		return toast.Success
	case "rejected", "withdrawn":
		return toast.Warning
	}
	return toast.Info
}

// Package repository persists notification history in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// ErrNotFound is returned when a notification does not exist for the user.
var ErrNotFound = errors.New("notification not found")

// DB is the subset of *pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL,
	data       JSONB,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	read_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS notifications_user_created_idx
	ON notifications (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS notifications_read_at_idx
	ON notifications (read_at) WHERE is_read;
`

// Notifications stores notification records per user.
type Notifications struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifications creates a repository over db.
func NewNotifications(db DB, logger *slog.Logger) *Notifications {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifications{db: db, logger: logger, now: time.Now}
}

// EnsureSchema creates the notifications table and indexes if missing.
func (r *Notifications) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Normalize fills the id, timestamp and level a stored record must have.
func Normalize(n protocol.Notification, now time.Time) protocol.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	if !n.Type.Valid() {
		n.Type = protocol.LevelInfo
	}
	return n
}

// Insert stores n for userID and returns the stored record. Inserting an id
// that already exists is a no-op.
func (r *Notifications) Insert(ctx context.Context, userID string, n protocol.Notification) (protocol.Notification, error) {
	n = Normalize(n, r.now().UTC())

	var data any
	if len(n.Data) > 0 {
		data = string(n.Data)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, level, message, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, userID, string(n.Type), n.Message, data, n.Read, n.Timestamp)
	if err != nil {
		return protocol.Notification{}, fmt.Errorf("insert notification: %w", err)
	}

	r.logger.Debug("notification stored", "id", n.ID, "user_id", userID)
	return n, nil
}

// ListUnread returns up to limit unread notifications for userID, newest first.
func (r *Notifications) ListUnread(ctx context.Context, userID string, limit int) ([]protocol.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, level, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("scan unread: %w", err)
	}
	return out, nil
}

func scanNotification(row pgx.CollectableRow) (protocol.Notification, error) {
	var (
		n     protocol.Notification
		level string
		data  []byte
	)
	if err := row.Scan(&n.ID, &level, &n.Message, &data, &n.Read, &n.Timestamp); err != nil {
		return protocol.Notification{}, err
	}
	n.Type = protocol.Level(level)
	if len(data) > 0 {
		n.Data = data
	}
	return n, nil
}

// MarkRead marks one notification as read.
func (r *Notifications) MarkRead(ctx context.Context, userID, id string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $3
		WHERE user_id = $1 AND id = $2 AND NOT is_read
	`, userID, id, r.now().UTC())
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification for userID and returns the count.
func (r *Notifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read
	`, userID, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return ct.RowsAffected(), nil
}

// Delete removes one notification.
func (r *Notifications) Delete(ctx context.Context, userID, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every notification for userID and returns the count.
func (r *Notifications) DeleteAll(ctx context.Context, userID string) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all notifications: %w", err)
	}
	return ct.RowsAffected(), nil
}

// PruneRead deletes read notifications that were read before cutoff.
func (r *Notifications) PruneRead(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE is_read AND read_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune read notifications: %w", err)
	}
	return ct.RowsAffected(), nil
}

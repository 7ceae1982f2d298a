package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// Publish posts a domain event under routingKey and returns the frame the
// server pushed to the recipient.
func (c *Client) Publish(ctx context.Context, routingKey string, event any) (protocol.ServerFrame, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	resp, err := c.post(ctx, "/api/events/"+url.PathEscape(routingKey), body)
	if err != nil {
		return nil, err
	}

	frame, err := protocol.DecodeServerFrame(resp)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return frame, nil
}

// Notify creates a notification for userID. A missing id is filled in
// before the first attempt so retries cannot create duplicates.
func (c *Client) Notify(ctx context.Context, userID string, n protocol.Notification) (protocol.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	frame, err := c.Publish(ctx, "notification.created", struct {
		UserID       string                `json:"userId"`
		Notification protocol.Notification `json:"notification"`
	}{userID, n})
	if err != nil {
		return protocol.Notification{}, err
	}

	nf, ok := frame.(protocol.NotificationFrame)
	if !ok {
		return protocol.Notification{}, errors.New("unexpected response frame " + string(frame.FrameType()))
	}
	return nf.Notification, nil
}

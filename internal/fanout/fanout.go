// Package fanout relays server frames between notifyd instances over Redis
// pub/sub, so a user connected to any instance receives every frame.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/metrics"
	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// Envelope is one frame addressed to one user.
type Envelope struct {
	Origin string          `json:"origin"` // Publishing instance id
	UserID string          `json:"userId"`
	Type   protocol.Type   `json:"type"`
	Frame  json.RawMessage `json:"frame"`
}

// DeliverFunc hands an encoded frame to local sessions of a user.
type DeliverFunc func(userID string, typ protocol.Type, frame []byte) int

// Fanout publishes and receives envelopes on a Redis channel.
type Fanout struct {
	rdb        redis.UniversalClient
	channel    string
	instanceID string
	logger     *slog.Logger
}

// New connects to Redis using cfg.
func New(cfg config.RedisConfig, instanceID string, logger *slog.Logger) *Fanout {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.Channel, instanceID, logger)
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(rdb redis.UniversalClient, channel, instanceID string, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		rdb:        rdb,
		channel:    channel,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Ping checks the Redis connection.
func (f *Fanout) Ping(ctx context.Context) error {
	if err := f.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Publish sends frame for userID to every subscribed instance.
func (f *Fanout) Publish(ctx context.Context, userID string, frame protocol.ServerFrame) error {
	data, err := EncodeEnvelope(f.instanceID, userID, frame)
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", f.channel, err)
	}
	metrics.FanoutMessages.WithLabelValues("published").Inc()
	return nil
}

// Run subscribes to the channel and delivers envelopes until ctx is done.
func (f *Fanout) Run(ctx context.Context, deliver DeliverFunc) error {
	ps := f.rdb.Subscribe(ctx, f.channel)
	defer ps.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := ps.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	f.logger.Info("fanout subscribed", "channel", f.channel, "instance", f.instanceID)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handle(msg.Payload, deliver)
		}
	}
}

func (f *Fanout) handle(payload string, deliver DeliverFunc) {
	env, err := DecodeEnvelope([]byte(payload))
	if err != nil {
		f.logger.Warn("dropping malformed envelope", "error", err)
		return
	}
	metrics.FanoutMessages.WithLabelValues("received").Inc()

	n := deliver(env.UserID, env.Type, env.Frame)
	f.logger.Debug("fanout delivered",
		"user_id", env.UserID,
		"type", env.Type,
		"origin", env.Origin,
		"sessions", n,
	)
}

// Close closes the Redis client.
func (f *Fanout) Close() error {
	return f.rdb.Close()
}

// EncodeEnvelope wraps an encoded frame for the wire.
func EncodeEnvelope(origin, userID string, frame protocol.ServerFrame) ([]byte, error) {
	data, err := protocol.Encode(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return json.Marshal(Envelope{
		Origin: origin,
		UserID: userID,
		Type:   frame.FrameType(),
		Frame:  data,
	})
}

// DecodeEnvelope parses an envelope and checks it is addressed.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.UserID == "" {
		return Envelope{}, errors.New("envelope has no user id")
	}
	if len(env.Frame) == 0 {
		return Envelope{}, errors.New("envelope has no frame")
	}
	return env, nil
}

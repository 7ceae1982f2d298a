package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required client fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Session.UserID == "" {
		return errors.New("session.user_id is required")
	}

	if c.Endpoint.URL != "" {
		if !strings.HasPrefix(c.Endpoint.URL, "ws://") && !strings.HasPrefix(c.Endpoint.URL, "wss://") {
			return fmt.Errorf("endpoint.url must start with ws:// or wss://, got %q", c.Endpoint.URL)
		}
	}
	if c.Endpoint.Port < 0 || c.Endpoint.Port > 65535 {
		return fmt.Errorf("endpoint.port must be between 0 and 65535, got %d", c.Endpoint.Port)
	}

	cc := c.Connection
	if cc.ConnectTimeout <= 0 {
		return errors.New("connection.connect_timeout must be > 0")
	}
	if cc.PingInterval <= 0 {
		return errors.New("connection.ping_interval must be > 0")
	}
	if cc.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	if cc.ReconnectFactor < 1 {
		return fmt.Errorf("connection.reconnect_factor must be >= 1, got %v", cc.ReconnectFactor)
	}
	if cc.ReconnectMax < cc.ReconnectInitial {
		return fmt.Errorf("connection.reconnect_max (%v) cannot be less than reconnect_initial (%v)", cc.ReconnectMax, cc.ReconnectInitial)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Validate checks that all required server fields are set and values are valid.
func (c *ServerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.HTTP.WSPath, "/") {
		return fmt.Errorf("http.ws_path must start with /, got %q", c.HTTP.WSPath)
	}

	if c.Auth.JWTSecret == "" && c.Auth.JWTSecretPath == "" {
		return errors.New("auth.jwt_secret or auth.jwt_secret_path is required")
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if c.AMQP.URL != "" && len(c.AMQP.RoutingKeys) == 0 {
		return errors.New("amqp.routing_keys must not be empty")
	}

	if c.Hub.AuthTimeout <= 0 {
		return errors.New("hub.auth_timeout must be > 0")
	}
	if c.Hub.QueueSize < 1 {
		return errors.New("hub.queue_size must be >= 1")
	}
	if c.Hub.ReplayLimit < 0 {
		return errors.New("hub.replay_limit must be >= 0")
	}

	if c.Retention.Interval <= 0 {
		return errors.New("retention.interval must be > 0")
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLogLevel maps a config level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", s)
}

package config

import "time"

// ClientConfig is the root configuration for a notification client.
type ClientConfig struct {
	Endpoint   EndpointConfig         `yaml:"endpoint"`
	Session    SessionConfig          `yaml:"session"`
	Connection ClientConnectionConfig `yaml:"connection"`
	Log        LogConfig              `yaml:"log"`
}

// EndpointConfig locates the notification WebSocket.
type EndpointConfig struct {
	URL     string `yaml:"url"`      // Full ws:// or wss:// URL; overrides everything else
	PageURL string `yaml:"page_url"` // Portal base URL; its scheme picks ws vs wss and its host is the fallback host
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// SessionConfig identifies the authenticated user.
type SessionConfig struct {
	UserID string `yaml:"user_id"`
	Token  string `yaml:"token"` // Empty = read from the system keyring
}

// ClientConnectionConfig tunes the reconnecting channel.
type ClientConnectionConfig struct {
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectFactor  float64       `yaml:"reconnect_factor"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

// LogConfig sets the slog level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig is the root configuration for a notification server instance.
type ServerConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Hub       HubConfig       `yaml:"hub"`
	Retention RetentionConfig `yaml:"retention"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// InstanceConfig identifies this server.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	WSPath            string        `yaml:"ws_path"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	PublishToken      string        `yaml:"publish_token"` // Bearer token for POST /api/notifications; empty disables the endpoint
}

// AuthConfig holds JWT verification settings.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	JWTSecretPath string `yaml:"jwt_secret_path"` // Read the secret from a file instead
	Issuer        string `yaml:"issuer"`
}

// DatabaseConfig holds the PostgreSQL connection for notification history.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig enables cross-instance fan-out. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// AMQPConfig enables the domain event consumer. Empty URL disables it.
type AMQPConfig struct {
	URL         string   `yaml:"url"`
	Exchange    string   `yaml:"exchange"`
	Queue       string   `yaml:"queue"`
	RoutingKeys []string `yaml:"routing_keys"`
}

// HubConfig tunes per-session behaviour.
type HubConfig struct {
	AuthTimeout  time.Duration `yaml:"auth_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"` // Close sessions silent for longer than this
	QueueSize    int           `yaml:"queue_size"`   // Initial per-session send queue capacity
	ReplayLimit  int           `yaml:"replay_limit"` // Unread notifications replayed after auth
}

// RetentionConfig controls pruning of read notifications.
type RetentionConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSPort            = 5000
	DefaultWSPath            = "/ws"
	DefaultConnectTimeout    = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultClientBufferSize  = 256
	DefaultReconnectInitial  = 2 * time.Second
	DefaultReconnectFactor   = 1.5
	DefaultReconnectMax      = 30 * time.Second
	DefaultLogLevel          = "info"
	DefaultHTTPAddr          = ":5000"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultJWTIssuer         = "jobportal"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultRedisChannel      = "notify:fanout"
	DefaultAMQPExchange      = "events"
	DefaultAMQPQueue         = "notify.events"
	DefaultAuthTimeout       = 10 * time.Second
	DefaultHubReadTimeout    = 90 * time.Second
	DefaultQueueSize         = 64
	DefaultReplayLimit       = 50
	DefaultRetentionInterval = 1 * time.Hour
	DefaultRetentionMaxAge   = 30 * 24 * time.Hour
	DefaultMetricsPath       = "/metrics"
)

// DefaultRoutingKeys are the domain events the server consumes.
var DefaultRoutingKeys = []string{
	"notification.created",
	"job.updated",
	"application.updated",
	"message.created",
}

// ApplyDefaults fills unset client fields.
func (c *ClientConfig) ApplyDefaults() {
	if c.Endpoint.Path == "" {
		c.Endpoint.Path = DefaultWSPath
	}

	cc := &c.Connection
	if cc.ConnectTimeout == 0 {
		cc.ConnectTimeout = DefaultConnectTimeout
	}
	if cc.PingInterval == 0 {
		cc.PingInterval = DefaultPingInterval
	}
	if cc.WriteTimeout == 0 {
		cc.WriteTimeout = DefaultWriteTimeout
	}
	if cc.BufferSize == 0 {
		cc.BufferSize = DefaultClientBufferSize
	}
	if cc.ReconnectInitial == 0 {
		cc.ReconnectInitial = DefaultReconnectInitial
	}
	if cc.ReconnectFactor == 0 {
		cc.ReconnectFactor = DefaultReconnectFactor
	}
	if cc.ReconnectMax == 0 {
		cc.ReconnectMax = DefaultReconnectMax
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// ApplyDefaults fills unset server fields.
func (c *ServerConfig) ApplyDefaults() {
	// HTTP defaults
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.WSPath == "" {
		c.HTTP.WSPath = DefaultWSPath
	}
	if c.HTTP.ReadHeaderTimeout == 0 {
		c.HTTP.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = DefaultJWTIssuer
	}

	applyDBDefaults(&c.Database.Postgres)

	if c.Redis.Channel == "" {
		c.Redis.Channel = DefaultRedisChannel
	}

	// AMQP defaults
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = DefaultAMQPExchange
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = DefaultAMQPQueue
	}
	if len(c.AMQP.RoutingKeys) == 0 {
		c.AMQP.RoutingKeys = append([]string(nil), DefaultRoutingKeys...)
	}

	// Hub defaults
	if c.Hub.AuthTimeout == 0 {
		c.Hub.AuthTimeout = DefaultAuthTimeout
	}
	if c.Hub.WriteTimeout == 0 {
		c.Hub.WriteTimeout = DefaultWriteTimeout
	}
	if c.Hub.ReadTimeout == 0 {
		c.Hub.ReadTimeout = DefaultHubReadTimeout
	}
	if c.Hub.QueueSize == 0 {
		c.Hub.QueueSize = DefaultQueueSize
	}
	if c.Hub.ReplayLimit == 0 {
		c.Hub.ReplayLimit = DefaultReplayLimit
	}

	// Retention defaults
	if c.Retention.Interval == 0 {
		c.Retention.Interval = DefaultRetentionInterval
	}
	if c.Retention.MaxAge == 0 {
		c.Retention.MaxAge = DefaultRetentionMaxAge
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/jobportal-notify/internal/config"
)

// ApplicationName identifies notifyd sessions in pg_stat_activity.
const ApplicationName = "jobportal-notify"

// BuildConnString builds a PostgreSQL URL from config. Unset port and SSL
// mode fall back to the config defaults.
func BuildConnString(cfg config.DBConfig) string {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

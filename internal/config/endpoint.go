package config

import (
	"net"
	"net/url"
	"strconv"
)

// Environment overrides for the WebSocket endpoint.
const (
	EnvWSURL  = "NOTIFY_WS_URL"
	EnvWSHost = "NOTIFY_WS_HOST"
	EnvWSPort = "NOTIFY_WS_PORT"
)

// ResolveURL builds the WebSocket URL for ep.
//
// A full URL from NOTIFY_WS_URL or ep.URL wins. Otherwise the scheme mirrors
// the page scheme (https → wss, anything else → ws), the host comes from
// NOTIFY_WS_HOST, ep.Host, the page hostname, then localhost, and the port
// from NOTIFY_WS_PORT, ep.Port, then DefaultWSPort.
func ResolveURL(ep EndpointConfig, getenv func(string) string) string {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	if u := getenv(EnvWSURL); u != "" {
		return u
	}
	if ep.URL != "" {
		return ep.URL
	}

	scheme := "ws"
	pageHost := ""
	if ep.PageURL != "" {
		if page, err := url.Parse(ep.PageURL); err == nil {
			if page.Scheme == "https" {
				scheme = "wss"
			}
			pageHost = page.Hostname()
		}
	}

	host := firstNonEmpty(getenv(EnvWSHost), ep.Host, pageHost, "localhost")

	port := DefaultWSPort
	if p, err := strconv.Atoi(getenv(EnvWSPort)); err == nil && p > 0 {
		port = p
	} else if ep.Port > 0 {
		port = ep.Port
	}

	path := ep.Path
	if path == "" {
		path = DefaultWSPath
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   path,
	}
	return u.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/centrifugal/centrifuge"
)

// NewHandler serves the dashboard websocket endpoint. Browsers must come from the
// app's own origin; localhost is also accepted in development.
func NewHandler(node *centrifuge.Node, appURL string, isDevelopment bool) http.Handler {
	policy := newOriginPolicy(appURL, isDevelopment)
	return centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: policy.check,
	})
}

type originPolicy struct {
	appOrigin      string
	allowLocalhost bool
}

func newOriginPolicy(appURL string, isDevelopment bool) originPolicy {
	appOrigin, _ := normalizeOrigin(appURL)
	if appOrigin == "" {
		slog.Warn("APP_URL has no host, only same-origin websocket clients will connect", "app_url", appURL)
	}
	return originPolicy{appOrigin: appOrigin, allowLocalhost: isDevelopment}
}

func (p originPolicy) check(r *http.Request) bool {
	raw := r.Header.Get("Origin")
	if p.allows(raw) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", raw, "remote_addr", r.RemoteAddr)
	return false
}

// allows reports whether a browser Origin header may open a connection.
// Non-browser clients send no Origin and are always allowed.
func (p originPolicy) allows(raw string) bool {
	if raw == "" {
		return true
	}
	origin, host := normalizeOrigin(raw)
	if origin == "" {
		return false
	}
	if p.appOrigin != "" && origin == p.appOrigin {
		return true
	}
	return p.allowLocalhost && (host == "localhost" || host == "127.0.0.1" || host == "::1")
}

// normalizeOrigin reduces a URL to scheme://host[:port], lowercased and without
// the scheme's default port. It also returns the bare hostname.
func normalizeOrigin(raw string) (origin, host string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", ""
	}

	scheme := strings.ToLower(u.Scheme)
	host = strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}

	hostPort := host
	if strings.Contains(host, ":") {
		hostPort = "[" + host + "]"
	}
	if port != "" {
		hostPort += ":" + port
	}
	return scheme + "://" + hostPort, host
}

package client

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints are the URLs the watcher talks to, derived from the one the user
// passed on the command line.
type Endpoints struct {
	SSE  string // http(s)://host/sse
	WS   string // ws(s)://host/ws
	Base string // http(s)://host
}

// ResolveEndpoints accepts any of the server's URLs (page, /sse, /ws, with
// http, https, ws or wss scheme) and derives the others from its host.
func ResolveEndpoints(raw string) (Endpoints, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return Endpoints{}, fmt.Errorf("url %q has no host", raw)
	}

	secure := false
	switch u.Scheme {
	case "http", "ws":
	case "https", "wss":
		secure = true
	default:
		return Endpoints{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	httpScheme, wsScheme := "http", "ws"
	if secure {
		httpScheme, wsScheme = "https", "wss"
	}
	base := fmt.Sprintf("%s://%s", httpScheme, u.Host)
	return Endpoints{
		SSE:  base + "/sse",
		WS:   fmt.Sprintf("%s://%s/ws", wsScheme, u.Host),
		Base: base,
	}, nil
}

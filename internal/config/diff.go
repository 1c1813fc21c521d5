package config

import (
	"fmt"
	"strings"
)

// Diff lists human-readable differences between two configs, one line per
// changed field, e.g. "stream.poll_interval: 300ms → 1s". It is used to log
// what a config file changed relative to the defaults.
func Diff(old, new *Config) []string {
	var changes []string
	add := func(field string, a, b any) {
		if fmt.Sprint(a) != fmt.Sprint(b) {
			changes = append(changes, fmt.Sprintf("%s: %v → %v", field, a, b))
		}
	}

	add("server.host", old.Server.Host, new.Server.Host)
	add("server.port", old.Server.Port, new.Server.Port)
	add("server.read_header_timeout", old.Server.ReadHeaderTimeout, new.Server.ReadHeaderTimeout)
	add("server.shutdown_timeout", old.Server.ShutdownTimeout, new.Server.ShutdownTimeout)
	add("server.allowed_origins", listString(old.Server.AllowedOrigins), listString(new.Server.AllowedOrigins))

	add("stream.poll_interval", old.Stream.PollInterval, new.Stream.PollInterval)
	add("stream.send_buffer", old.Stream.SendBuffer, new.Stream.SendBuffer)
	add("stream.max_connections", old.Stream.MaxConnections, new.Stream.MaxConnections)
	add("stream.ws_ping_interval", old.Stream.WSPingInterval, new.Stream.WSPingInterval)
	add("stream.ws_write_timeout", old.Stream.WSWriteTimeout, new.Stream.WSWriteTimeout)

	add("page.owner", old.Page.Owner, new.Page.Owner)
	add("page.address_placeholder", old.Page.AddressPlaceholder, new.Page.AddressPlaceholder)
	add("page.trust_forwarded_for", old.Page.TrustForwardedFor, new.Page.TrustForwardedFor)

	add("metrics.enabled", old.Metrics.Enabled, new.Metrics.Enabled)

	add("privacy.mask_session_ids", old.Privacy.MaskSessionIDs, new.Privacy.MaskSessionIDs)
	add("privacy.hidden_transports", listString(old.Privacy.HiddenTransports), listString(new.Privacy.HiddenTransports))

	return changes
}

func listString(items []string) string {
	return "[" + strings.Join(items, " ") + "]"
}

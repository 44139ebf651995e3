package realtime

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint derives the realtime URL from the page origin. The scheme is
// wss when origin is https and ws otherwise; hostOverride replaces the
// origin host when set.
func Endpoint(origin, hostOverride, path string) (string, error) {
	scheme := "ws"
	host := strings.TrimSpace(hostOverride)

	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return "", fmt.Errorf("realtime: parse origin %q: %w", origin, err)
		}
		if u.Scheme == "https" {
			scheme = "wss"
		}
		if host == "" {
			host = u.Host
		}
	}

	if host == "" {
		return "", fmt.Errorf("realtime: no host in origin %q and no override", origin)
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return (&url.URL{Scheme: scheme, Host: host, Path: path}).String(), nil
}

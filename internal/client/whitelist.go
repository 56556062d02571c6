package client

import (
	"net/url"
	"strings"
)

// Whitelist lists URL path suffixes that never carry credentials. The
// credential issuance and refresh endpoints must be on it, otherwise
// refreshing would itself need a valid credential.
type Whitelist []string

// DefaultWhitelist exempts the login and refresh endpoints.
var DefaultWhitelist = Whitelist{"/refresh-token", "/login"}

// Match reports whether rawURL's path ends with one of the suffixes.
func (w Whitelist) Match(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	for _, suffix := range w {
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

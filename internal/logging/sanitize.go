package logging

import (
	"net/url"
	"strings"
)

// SanitizeURL removes userinfo, query and fragment so API tokens passed as
// query parameters never reach the logs. Scheme, host and path are kept.
func SanitizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

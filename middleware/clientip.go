package middleware

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts an identifier from a request.
type KeyFunc func(r *http.Request) string

// ClientIP returns a KeyFunc resolving the caller address. Forwarding headers
// are honoured only when trustProxy is set, since clients can forge them.
func ClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		return strings.TrimSpace(r.RemoteAddr)
	}
}

// Header returns a KeyFunc reading a trimmed header value.
func Header(name string) KeyFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/goGuard/jwt"
)

// BearerSubject returns a KeyFunc yielding the user id of a valid bearer
// access token, or "" when the header is missing or the token does not
// verify. It only keys the per-user limiter; it authorizes nothing.
func BearerSubject(m *jwt.Manager, tenantID KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		if m == nil {
			return ""
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return ""
		}
		tid := ""
		if tenantID != nil {
			tid = tenantID(r)
		}
		claims, err := m.Parse(token, jwt.TypeAccess, tid)
		if err != nil {
			return ""
		}
		return claims.UID
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

package rate

import (
	"fmt"
	"strings"
)

// Category is the class of thing being limited. The zero value is invalid.
type Category uint8

const (
	CategoryIP Category = iota + 1
	CategoryUser
	CategoryEndpoint
	CategoryLogin
	CategoryOTP
	CategoryTokenRefresh
	CategoryInvalidToken

	categoryEnd
)

// Categories lists every valid category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, int(categoryEnd)-1)
	for c := CategoryIP; c < categoryEnd; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	return c >= CategoryIP && c < categoryEnd
}

// String returns the key-space name of c.
func (c Category) String() string {
	switch c {
	case CategoryIP:
		return "ip"
	case CategoryUser:
		return "user"
	case CategoryEndpoint:
		return "endpoint"
	case CategoryLogin:
		return "login"
	case CategoryOTP:
		return "otp"
	case CategoryTokenRefresh:
		return "token_refresh"
	case CategoryInvalidToken:
		return "invalid_token"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// IsCredentialAbuse reports whether failures in c are counted by the
// Failure Tracker rather than escalated by the Decision Engine.
func (c Category) IsCredentialAbuse() bool {
	switch c {
	case CategoryLogin, CategoryInvalidToken:
		return true
	default:
		return false
	}
}

// ParseCategory accepts the key-space name (case-insensitive) plus the
// upper-case aliases used in configuration files.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ip":
		return CategoryIP, nil
	case "user":
		return CategoryUser, nil
	case "endpoint":
		return CategoryEndpoint, nil
	case "login":
		return CategoryLogin, nil
	case "otp":
		return CategoryOTP, nil
	case "token_refresh", "refresh":
		return CategoryTokenRefresh, nil
	case "invalid_token", "invalid_credential":
		return CategoryInvalidToken, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

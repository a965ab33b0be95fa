package rate

import (
	"strings"

	"github.com/MrEthical07/goGuard/internal/store"
)

// Key is the canonical identity of one counter.
type Key struct {
	Category   Category
	Identifier string
	Extra      []string
}

// NewKey builds a counter key. Extra parts keep their order, e.g. the HTTP
// method and route for [CategoryEndpoint].
func NewKey(c Category, identifier string, extra ...string) Key {
	return Key{Category: c, Identifier: identifier, Extra: extra}
}

// String renders {category}:{identifier}[:{extra}...] with escaped segments.
func (k Key) String() string {
	var b strings.Builder
	name := k.Category.String()
	b.Grow(len(name) + len(k.Identifier) + 1 + 8*len(k.Extra))
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(store.EscapeSegment(k.Identifier))
	for _, part := range k.Extra {
		b.WriteByte(':')
		b.WriteString(store.EscapeSegment(part))
	}
	return b.String()
}

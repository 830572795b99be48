// Package respcache is a two-tier TTL cache for read-mostly API responses,
// scoped per user.
package respcache

import (
	"strings"
	"time"
)

const (
	// AnonymousUser is the user key when no auth token is available.
	AnonymousUser = "anon"

	keyPrefix     = "apiCache"
	userKeyLength = 16

	// MinTTL is the shortest lifetime an entry can be written with.
	MinTTL = time.Second

	DefaultMemoryTTL    = 60 * time.Second
	DefaultPersistedTTL = 120 * time.Second
)

// Key identifies one cached response. Query is compared verbatim, so the
// same parameters in a different order are a different key.
type Key struct {
	Namespace string
	Query     string
	User      string
}

func NewKey(namespace, query, user string) Key {
	if user == "" {
		user = AnonymousUser
	}
	return Key{Namespace: namespace, Query: query, User: user}
}

func (k Key) String() string {
	user := k.User
	if user == "" {
		user = AnonymousUser
	}
	var b strings.Builder
	b.Grow(len(keyPrefix) + len(k.Namespace) + len(user) + len(k.Query) + 3)
	b.WriteString(keyPrefix)
	b.WriteByte(':')
	b.WriteString(k.Namespace)
	b.WriteByte(':')
	b.WriteString(user)
	b.WriteByte(':')
	b.WriteString(k.Query)
	return b.String()
}

// UserKey derives a cache scope from the tail of an auth token. It only keeps
// users apart inside a shared cache and is not a credential.
func UserKey(token string) string {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return AnonymousUser
	}
	if len(token) > userKeyLength {
		token = token[len(token)-userKeyLength:]
	}
	return "u_" + token
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}

package respcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	assert.Equal(t, "apiCache:GET_BUYER_ORDERS:u_1:buyerId=b1", NewKey("GET_BUYER_ORDERS", "buyerId=b1", "u_1").String())
	assert.Equal(t, "apiCache:NS:anon:q=1", NewKey("NS", "q=1", "").String())
	assert.Equal(t, "apiCache:NS:anon:q=1", Key{Namespace: "NS", Query: "q=1"}.String())
}

func TestUserKey(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: AnonymousUser},
		{name: "blank", token: "   ", want: AnonymousUser},
		{name: "short token", token: "abc", want: "u_abc"},
		{name: "long token keeps tail", token: "eyJhbGciOiJSUzI1NiJ9.payload.SIGNATURE0123456789", want: "u_NATURE0123456789"},
		{name: "bearer prefix", token: "Bearer abc", want: "u_abc"},
		{name: "literal anon", token: "anon", want: "u_anon"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserKey(tc.token))
		})
	}
}

func TestUserKey_Deterministic(t *testing.T) {
	token := "header.payload.0123456789abcdefXYZ"
	assert.Equal(t, UserKey(token), UserKey(token))
	assert.NotEqual(t, UserKey(token), UserKey(token+"1"))
	assert.Len(t, UserKey(token), len("u_")+userKeyLength)
}

package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyspace_Key(t *testing.T) {
	tests := []struct {
		name  string
		space keyspace
		parts []string
		want  string
	}{
		{"single part", notifyKeys, []string{"low_balance:acc-1:2026-10-19"}, "adwallet:notify:low_balance:acc-1:2026-10-19"},
		{"scoped nonce", nonceKeys, []string{"payments", "n-1"}, "adwallet:nonce:payments:n-1"},
		{"window counter", rateLimitKeys, []string{"user-3:wallet_read", "42"}, "adwallet:ratelimit:user-3:wallet_read:42"},
		{"no parts", idempotencyKeys, nil, "adwallet:idem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.space.key(tt.parts...))
		})
	}
}

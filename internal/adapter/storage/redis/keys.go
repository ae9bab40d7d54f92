package redis

import "strings"

// keyNamespace prefixes every key this service writes, so a shared Redis
// instance can be inspected or flushed per application.
const keyNamespace = "adwallet"

// keyspace is one family of keys under keyNamespace.
type keyspace string

const (
	notifyKeys      keyspace = "notify"
	rateLimitKeys   keyspace = "ratelimit"
	idempotencyKeys keyspace = "idem"
	nonceKeys       keyspace = "nonce"
)

// key joins parts into "adwallet:<keyspace>:<part>:<part>...".
func (k keyspace) key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(string(k))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

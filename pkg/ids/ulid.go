package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a lexicographically sortable id for guard runs and
// outbound commands.
func NewULID() string {
	return NewULIDAt(time.Now())
}

// NewULIDAt returns a ULID carrying the given timestamp.
func NewULIDAt(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewULID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestNewULIDAt_Timestamp(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	id, err := ulid.Parse(NewULIDAt(at))
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), int64(id.Time()))
}

func TestNewULIDAt_Sortable(t *testing.T) {
	earlier := NewULIDAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewULIDAt(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

package order

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIDFormat(t *testing.T) {
	g := NewIDGenerator()
	g.Now = func() time.Time { return time.UnixMilli(1_772_445_123_456) }

	id := g.Next()
	require.Regexp(t, `^SS123456[A-Z0-9]{3}$`, id)
}

func TestIDTimestampIsStrictlyIncreasing(t *testing.T) {
	g := NewIDGenerator()
	g.Now = func() time.Time { return time.UnixMilli(5_000_999) }

	first, second := g.Next(), g.Next()
	require.Equal(t, "SS000999", first[:8])
	require.Equal(t, "SS001000", second[:8])
}

func TestIDsAreDistinctUnderConcurrency(t *testing.T) {
	g := NewIDGenerator()
	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

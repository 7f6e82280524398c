package order

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// IDGenerator issues human-readable order ids: a prefix, the low six digits
// of a strictly increasing millisecond timestamp and three random
// alphanumerics, e.g. "SS482193K7Q". Ids are practically unique, not
// guaranteed unique.
type IDGenerator struct {
	Prefix string
	Now    func() time.Time

	mu   sync.Mutex
	last int64
}

// NewIDGenerator returns a generator with the "SS" prefix.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{Prefix: "SS"}
}

// Next returns a new id.
func (g *IDGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	g.mu.Lock()
	ms := now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return fmt.Sprintf("%s%06d%s", g.Prefix, ms%1_000_000, randomSuffix(3))
}

func randomSuffix(n int) string {
	b := uuid.New()
	out := make([]byte, n)
	for i := range out {
		out[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(out)
}

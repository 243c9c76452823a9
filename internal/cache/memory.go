package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMaxItems = 10000

// MemoryLedger keeps the reminder ledger in a bounded, expiring LRU. It is
// only correct when a single process runs the reminder scan.
type MemoryLedger struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, struct{}]
}

// NewMemoryLedger creates a ledger holding at most maxItems keys for ttl.
func NewMemoryLedger(maxItems int, ttl time.Duration) *MemoryLedger {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &MemoryLedger{entries: expirable.NewLRU[string, struct{}](maxItems, nil, ttlOrDefault(ttl))}
}

// MarkSent reports true the first time a reminder is recorded.
func (l *MemoryLedger) MarkSent(_ context.Context, assessmentID string, day time.Time) (bool, error) {
	key := reminderKey(assessmentID, day)

	// Contains and Add are individually safe; the pair must not interleave.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries.Contains(key) {
		return false, nil
	}
	l.entries.Add(key, struct{}{})
	return true, nil
}

// Forget drops the reminder record.
func (l *MemoryLedger) Forget(_ context.Context, assessmentID string, day time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Remove(reminderKey(assessmentID, day))
	return nil
}

// Len returns the number of live entries.
func (l *MemoryLedger) Len() int {
	return l.entries.Len()
}

package engine

import "sync"

// LeaseTable serializes turns per conversation within one process. A second
// turn arriving while the first still holds the lease is rejected rather
// than queued, keeping turn latency predictable.
//
// All methods are safe for concurrent access.
type LeaseTable struct {
	mu     sync.Mutex
	leases map[string]struct{}
}

// NewLeaseTable creates an empty lease table.
func NewLeaseTable() *LeaseTable {
	return &LeaseTable{
		leases: make(map[string]struct{}),
	}
}

// TryAcquire takes the lease for the conversation if it is free. It never
// blocks: the second return is false when the lease is already held.
// The caller must invoke the returned release function exactly once.
func (t *LeaseTable) TryAcquire(conversationID string) (release func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.leases[conversationID]; held {
		return nil, false
	}
	t.leases[conversationID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.leases, conversationID)
		})
	}, true
}

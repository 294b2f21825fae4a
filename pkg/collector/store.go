package collector

import (
	"sync/atomic"

	"github.com/platinummonkey/stripe-exporter/pkg/billing"
)

// SnapshotStore holds the latest published snapshot. It starts with an
// empty snapshot so the exposition is complete before the first
// refresh, and replaces the whole snapshot atomically on publish.
type SnapshotStore struct {
	current atomic.Pointer[billing.Snapshot]
}

// NewSnapshotStore creates a store primed with an empty snapshot
func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	s.current.Store(billing.NewEmptySnapshot())
	return s
}

// Current returns the most recently published snapshot
func (s *SnapshotStore) Current() *billing.Snapshot {
	return s.current.Load()
}

// Publish atomically replaces the current snapshot. The snapshot must
// not be mutated after it is published.
func (s *SnapshotStore) Publish(snap *billing.Snapshot) {
	s.current.Store(snap)
}

package querycache

import "sync"

// Subscription receives snapshots of one key. Close it when the screen
// goes away so the entry becomes eligible for eviction.
type Subscription struct {
	key   Key
	cache *Cache
	ch    chan Snapshot
	once  sync.Once
}

// C delivers snapshots. It is never closed; stop reading after Close.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

func (s *Subscription) Key() Key { return s.key }

// Close decrements the entry's subscriber count. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() { s.cache.unsubscribe(s) })
}

// deliver replaces any undelivered snapshot with snap.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// notifyLocked delivers e's snapshot to its subscribers. Delivery never
// blocks, so it happens under the cache mutex and preserves ordering.
func (c *Cache) notifyLocked(e *entry) {
	if len(e.subs) == 0 {
		return
	}
	snap := c.snapshotLocked(e)
	for s := range e.subs {
		s.deliver(snap)
	}
}

package session

import "time"

// NewStoreForTest builds a store with a fixed clock and TTL so expiry
// tests do not depend on wall time.
func NewStoreForTest(clock func() time.Time, ttl time.Duration) *Store {
	return NewStore(WithTTL(ttl), withClock(clock))
}

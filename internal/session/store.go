package session

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

const (
	// shardCount spreads conversations across locks so unrelated chats
	// never contend.
	shardCount = 32

	// DefaultTTL is how long an idle session survives before the sweeper
	// may evict it.
	DefaultTTL = 2 * time.Hour
)

// Store is a keyed session store. Operations on different keys run in
// parallel; operations on the same key are linearizable. Update runs its
// callback under the key's lock, which is how every read-modify-write in
// the engine avoids lost updates.
type Store struct {
	shards [shardCount]shard
	ttl    time.Duration
	clock  func() time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

type entry struct {
	mu           sync.Mutex
	state        *State
	seq          uint64
	lastActivity time.Time
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithTTL overrides the idle eviction window.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// withClock substitutes the time source (tests only).
func withClock(clock func() time.Time) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// NewStore creates an empty session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		ttl:   DefaultTTL,
		clock: time.Now,
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[Key]*entry)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for a key, or nil when none exists.
func (s *Store) Get(key Key) *State {
	var st *State
	s.withEntry(key, false, func(e *entry) {
		if e != nil {
			st = e.state
		}
	})
	return st
}

// Put replaces the session for a key wholesale and assigns it the next
// sequence number, invalidating interactions built against the previous
// session.
func (s *Store) Put(key Key, state *State) {
	s.Update(key, func(*State) *State { return state })
}

// Clear removes the session for a key.
func (s *Store) Clear(key Key) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
}

// Update runs fn under the key's lock with the current session (nil when
// absent) and commits whatever fn returns. Returning the argument mutates
// in place; returning a different *State replaces the session wholesale
// and bumps the key's sequence number, invalidating interactions built
// against the previous session. All read-modify-writes in the engine go
// through here, so same-key operations are linearizable.
func (s *Store) Update(key Key, fn func(state *State) *State) {
	s.withEntry(key, true, func(e *entry) {
		next := fn(e.state)
		if next != e.state {
			e.seq++
			if next != nil {
				next.Seq = e.seq
			}
		}
		e.state = next
	})
}

// Seq returns the current sequence number for a key. Zero means the
// conversation has never submitted a query.
func (s *Store) Seq(key Key) uint64 {
	var seq uint64
	s.withEntry(key, false, func(e *entry) {
		if e != nil {
			seq = e.seq
		}
	})
	return seq
}

// SweepExpired evicts sessions idle for longer than the TTL and returns
// how many were removed.
func (s *Store) SweepExpired() int {
	cutoff := s.clock().Add(-s.ttl)
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.lastActivity.Before(cutoff) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Stats reports total and recently-active session counts.
func (s *Store) Stats() map[string]int {
	total := 0
	active := 0
	cutoff := s.clock().Add(-s.ttl)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.entries)
		for _, e := range sh.entries {
			if !e.lastActivity.Before(cutoff) {
				active++
			}
		}
		sh.mu.Unlock()
	}
	return map[string]int{
		"total":  total,
		"active": active,
	}
}

// withEntry locates (optionally creating) the entry for a key, then runs
// fn holding the entry lock but not the shard lock, so long operations on
// one conversation never block its shard siblings.
func (s *Store) withEntry(key Key, create bool, fn func(e *entry)) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		if !create {
			sh.mu.Unlock()
			fn(nil)
			return
		}
		e = &entry{}
		sh.entries[key] = e
	}
	sh.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = s.clock()
	fn(e)
}

func (s *Store) shardFor(key Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(int64(key), 10)))
	return &s.shards[h.Sum32()%shardCount]
}

package session

import (
	"sync"
	"time"

	"github.com/muni-info/backend/internal/utils"
)

// DefaultTTL is how long a session survives without activity before the next
// access sees a fresh one.
const DefaultTTL = 5 * time.Minute

const shardCount = 32

// Store keeps one Session per end-user address. The map is sharded by address
// hash so events for distinct addresses never contend on a lock; Update gives
// callers an atomic get-mutate-put for a single address. Expiry is lazy: an
// entry older than the TTL is treated as absent on next access.
type Store struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{ttl: ttl, now: time.Now}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]Session)
	}
	return s
}

func (s *Store) shardFor(address string) *shard {
	return &s.shards[utils.PickShard(address, shardCount)]
}

func (s *Store) fresh(address string) Session {
	return Session{
		Address:     address,
		State:       StateStart,
		LastTouched: s.now(),
	}
}

func (s *Store) expired(sess Session) bool {
	return s.now().Sub(sess.LastTouched) > s.ttl
}

// Get returns the live session for address, or a fresh one in StateStart when
// none exists or the stored one has expired.
func (s *Store) Get(address string) Session {
	sh := s.shardFor(address)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[address]
	if !ok || s.expired(sess) {
		return s.fresh(address)
	}
	return sess
}

// Put stores sess under address, stamping LastTouched.
func (s *Store) Put(address string, sess Session) {
	sess.Address = address
	sess.LastTouched = s.now()

	sh := s.shardFor(address)
	sh.mu.Lock()
	sh.sessions[address] = sess
	sh.mu.Unlock()
}

// Update applies fn to the session for address under the shard lock, so two
// racing events for the same address cannot lose each other's writes. The
// session passed to fn is fresh when none exists or the stored one expired.
// It returns the stored result.
func (s *Store) Update(address string, fn func(*Session)) Session {
	sh := s.shardFor(address)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[address]
	if !ok || s.expired(sess) {
		sess = s.fresh(address)
	}
	fn(&sess)
	sess.Address = address
	sess.LastTouched = s.now()
	sh.sessions[address] = sess
	return sess
}

// CleanupExpired drops expired entries and reports how many were removed.
// Purely a memory reclaim; Get already treats expired entries as absent.
func (s *Store) CleanupExpired() int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for addr, sess := range sh.sessions {
			if s.expired(sess) {
				delete(sh.sessions, addr)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}

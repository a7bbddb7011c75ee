package cache

import (
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultSweepInterval is how often the background sweeper removes
	// expired entries when no interval is configured.
	DefaultSweepInterval = 5 * time.Minute

	// defaultEntryTTL is applied when a caller sets an entry without a
	// positive TTL.
	defaultEntryTTL = time.Hour
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is the in-process fallback backend. Entries expire lazily on
// read and eagerly via a periodic sweep. All operations are mutex-guarded, so
// the store is safe for concurrent use within a single process; it provides
// no coordination across processes.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates an in-memory store and starts its expiry sweeper.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{
		items: make(map[string]memoryEntry),
		done:  make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

// Get loads a key, deleting it on the spot when it has expired.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// overwritten the entry since the read.
		if current, still := s.items[key]; still && time.Now().After(current.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return append([]byte{}, entry.value...), true
}

// Set stores a key with TTL, overwriting any previous entry.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultEntryTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryEntry{
		value:     append([]byte{}, value...),
		expiresAt: time.Now().Add(ttl),
	}
}

// SetIfNotExists stores the key only when it is absent or expired. Returns
// true when this call created the entry. The check-and-set runs under the
// store mutex, so it is atomic within the process.
func (s *MemoryStore) SetIfNotExists(key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = defaultEntryTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.items[key]; ok && time.Now().Before(entry.expiresAt) {
		return false
	}
	s.items[key] = memoryEntry{
		value:     append([]byte{}, value...),
		expiresAt: time.Now().Add(ttl),
	}
	return true
}

// Delete removes a key. Returns true when the key was present.
func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

// DeletePattern removes every unexpired key matching the glob pattern and
// returns how many were deleted.
func (s *MemoryStore) DeletePattern(pattern string) (int, error) {
	re, err := compileGlob(pattern)
	if err != nil {
		return 0, cacheError(ErrInvalidArgument, "invalid pattern "+pattern)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key := range s.items {
		if re.MatchString(key) {
			delete(s.items, key)
			deleted++
		}
	}
	return deleted, nil
}

// Has reports whether the key is present and unexpired.
func (s *MemoryStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// TTL returns the remaining lifetime of the key, TTLMissing when absent.
func (s *MemoryStore) TTL(key string) time.Duration {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return TTLMissing
	}
	return time.Until(entry.expiresAt)
}

// IncrBy adds amount to the counter stored at key, creating it when absent.
// The TTL is applied only on creation. The counter is consistent within this
// process only; concurrent processes in fallback mode each count separately.
func (s *MemoryStore) IncrBy(key string, amount int64, ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = defaultEntryTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	expiresAt := time.Now().Add(ttl)
	if entry, ok := s.items[key]; ok && time.Now().Before(entry.expiresAt) {
		if parsed, err := strconv.ParseInt(string(entry.value), 10, 64); err == nil {
			current = parsed
		}
		expiresAt = entry.expiresAt
	}
	current += amount
	s.items[key] = memoryEntry{
		value:     []byte(strconv.FormatInt(current, 10)),
		expiresAt: expiresAt,
	}
	return current
}

// Len returns the number of stored entries, including not-yet-swept expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close stops the background sweeper. The store remains usable afterwards;
// expired entries are then only removed lazily.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, key)
		}
	}
}

package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	sent      bool
	expiresAt time.Time
}

// SuppressionStore implements ports.SuppressionStore in process memory.
// Suitable for a single guard process; state is lost on restart.
type SuppressionStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewSuppressionStore creates the store and starts a janitor that evicts
// expired keys every sweep interval.
func NewSuppressionStore(sweep time.Duration) *SuppressionStore {
	s := &SuppressionStore{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.janitor(sweep)
	return s
}

// Claim inserts key if absent or expired.
func (s *SuppressionStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = entry{expiresAt: now.Add(ttl)}
	return true, nil
}

// Confirm marks key as sent until ttl elapses.
func (s *SuppressionStore) Confirm(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{sent: true, expiresAt: s.now().Add(ttl)}
	return nil
}

// Release removes an unconfirmed claim.
func (s *SuppressionStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !e.sent {
		delete(s.entries, key)
	}
	return nil
}

// Len returns the number of live entries.
func (s *SuppressionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the janitor.
func (s *SuppressionStore) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

func (s *SuppressionStore) janitor(sweep time.Duration) {
	defer close(s.done)
	if sweep <= 0 {
		sweep = time.Minute
	}
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *SuppressionStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// NonceStore implements ports.NonceStore on top of a SuppressionStore for
// deployments without Redis.
type NonceStore struct {
	claims *SuppressionStore
}

// NewNonceStore shares the claim table of s.
func NewNonceStore(s *SuppressionStore) *NonceStore {
	return &NonceStore{claims: s}
}

// CheckAndSet returns true if the nonce was not used within ttl.
func (n *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	return n.claims.Claim(ctx, "nonce:"+scope+":"+nonce, ttl)
}

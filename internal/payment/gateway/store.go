package gateway

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/google/uuid"
)

// CleanupInterval is how often the background expiry runs.
const CleanupInterval = 30 * time.Second

var (
	ErrAuthorizationNotFound = errors.New("authorization not found")
	ErrAuthorizationExpired  = errors.New("authorization has expired")
	ErrInvalidState          = errors.New("invalid authorization state for this operation")
)

// Outcome decides whether a capture goes through.
type Outcome interface {
	Decide() Decision
}

type Decision struct {
	Approved bool
	Refusal  string
	Reason   string
}

// MemoryStore keeps authorizations in memory and expires uncaptured ones after the TTL.
type MemoryStore struct {
	mu             sync.Mutex
	authorizations map[string]*Authorization
	ttl            time.Duration
	now            func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		authorizations: make(map[string]*Authorization),
		ttl:            ttl,
		now:            time.Now,
		stopCleanup:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireAuthorizations()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expireAuthorizations() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for _, auth := range s.authorizations {
		if auth.State == StateAuthorized && auth.IsExpired(now) {
			auth.State = StateExpired
			expired++
		}
	}
	return expired
}

func (s *MemoryStore) Authorize(amount domain.Money) (*Authorization, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	auth := &Authorization{
		Handle:    "auth_" + uuid.NewString(),
		Amount:    amount,
		State:     StateAuthorized,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.authorizations[auth.Handle] = auth

	copied := *auth
	return &copied, nil
}

// Capture settles the authorization once. Repeating a capture returns the first result.
func (s *MemoryStore) Capture(handle string, outcome Outcome) (*Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, exists := s.authorizations[handle]
	if !exists {
		return nil, ErrAuthorizationNotFound
	}

	switch auth.State {
	case StateCaptured, StateDeclined:
	case StateAuthorized:
		if auth.IsExpired(s.now()) {
			auth.State = StateExpired
			return nil, ErrAuthorizationExpired
		}
		decision := outcome.Decide()
		if decision.Approved {
			auth.State = StateCaptured
			auth.TransactionID = "TXN-" + uuid.NewString()
		} else {
			auth.State = StateDeclined
			auth.Refusal = decision.Refusal
			auth.Reason = decision.Reason
		}
	case StateExpired:
		return nil, ErrAuthorizationExpired
	default:
		return nil, ErrInvalidState
	}

	copied := *auth
	return &copied, nil
}

// Refund voids a captured authorization. Refunding twice is not an error.
func (s *MemoryStore) Refund(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, exists := s.authorizations[handle]
	if !exists {
		return ErrAuthorizationNotFound
	}

	switch auth.State {
	case StateRefunded:
		return nil
	case StateCaptured:
		auth.State = StateRefunded
		return nil
	default:
		return ErrInvalidState
	}
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}

package account

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thriftique/service-account-go/internal/account/entity"
)

var (
	// ErrNotFound is returned when no account matches the lookup key.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when a create or update would violate
	// email uniqueness.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store is the credential store every component reads and writes through.
// Implementations must keep email unique across all accounts; single-row
// writes are expected to be atomic, while read-modify-write sequences are
// serialized above the store via Locks.
type Store interface {
	ByID(ctx context.Context, id int64) (*entity.Account, error)
	ByEmail(ctx context.Context, email string) (*entity.Account, error)
	ByVerificationToken(ctx context.Context, token string) (*entity.Account, error)
	Create(ctx context.Context, a *entity.Account) error
	Update(ctx context.Context, a *entity.Account) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*entity.Account, error)
}

// Locks serializes read-modify-write sequences per account id. Two
// concurrent failed logins, or a login racing an admin disable, would
// otherwise clobber each other's counter writes.
type Locks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{m: make(map[int64]*sync.Mutex)}
}

// Acquire locks the mutex for id and returns its release func.
func (l *Locks) Acquire(id int64) func() {
	l.mu.Lock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// MemoryStore is a mutex-guarded in-memory Store. It backs the test suite
// and the DATABASE_URL=memory development mode.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]*entity.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[int64]*entity.Account)}
}

func (s *MemoryStore) ByID(_ context.Context, id int64) (*entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *MemoryStore) ByEmail(_ context.Context, email string) (*entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ByVerificationToken(_ context.Context, token string) (*entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.VerificationToken != nil && *a.VerificationToken == token {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, a *entity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return ErrDuplicateEmail
		}
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, a *entity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.accounts {
		if id != a.ID && strings.EqualFold(existing.Email, a.Email) {
			return ErrDuplicateEmail
		}
	}
	a.UpdatedAt = time.Now()
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len reports the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func cloneAccount(a *entity.Account) *entity.Account {
	c := *a
	if a.VerificationToken != nil {
		v := *a.VerificationToken
		c.VerificationToken = &v
	}
	if a.DisabledUntil != nil {
		t := *a.DisabledUntil
		c.DisabledUntil = &t
	}
	if a.Phone != nil {
		p := *a.Phone
		c.Phone = &p
	}
	if a.Bio != nil {
		b := *a.Bio
		c.Bio = &b
	}
	return &c
}

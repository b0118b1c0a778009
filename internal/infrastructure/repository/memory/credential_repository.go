package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/credential"
)

// CredentialRepository keeps admin tokens in process. A mutex per account
// stands in for the row lock used by the postgres implementation.
type CredentialRepository struct {
	mu     sync.RWMutex
	tokens map[string]credential.AccessToken
	order  []string
	locks  map[string]*sync.Mutex
	now    func() time.Time
}

func NewCredentialRepository(seed ...credential.AccessToken) *CredentialRepository {
	repo := &CredentialRepository{
		tokens: make(map[string]credential.AccessToken, len(seed)),
		locks:  make(map[string]*sync.Mutex, len(seed)),
		now:    time.Now,
	}
	for _, item := range seed {
		repo.Put(item)
	}
	return repo
}

// Put stores or replaces a token row, as the admin link flow would.
func (r *CredentialRepository) Put(token credential.AccessToken) {
	id := strings.TrimSpace(token.AccountID)
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[id]; !ok {
		r.order = append(r.order, id)
		r.locks[id] = &sync.Mutex{}
	}
	r.tokens[id] = token
}

func (r *CredentialRepository) Get(accountID string) (credential.AccessToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.tokens[accountID]
	return token, ok
}

func (r *CredentialRepository) ResolveAdminAccountID(_ context.Context, accountID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accountID = strings.TrimSpace(accountID)
	if accountID != "" {
		_, ok := r.tokens[accountID]
		return accountID, ok, nil
	}
	if len(r.order) == 0 {
		return "", false, nil
	}
	return r.order[0], true, nil
}

func (r *CredentialRepository) WithLockedToken(ctx context.Context, accountID string, fn credential.LockedFunc) (credential.AccessToken, error) {
	r.mu.RLock()
	lock, ok := r.locks[accountID]
	r.mu.RUnlock()
	if !ok {
		return credential.AccessToken{}, credential.ErrAccountNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	current, ok := r.Get(accountID)
	if !ok {
		return credential.AccessToken{}, credential.ErrAccountNotFound
	}

	next, err := fn(ctx, current)
	if err != nil {
		return credential.AccessToken{}, err
	}
	if next == current {
		return current, nil
	}

	next.AccountID = accountID
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = r.now().UTC()
	}
	r.Put(next)
	return next, nil
}

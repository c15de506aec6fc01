package ledger

import (
	"sync"

	"invest-ledger/internal/domain"
)

// Locks serializes writers in the engine's consistency domain. Incremental
// submits take the account lock shared plus the holding-key lock exclusive,
// so different keys in one account proceed concurrently while two writers on
// one key serialize. The batch reconciler takes the account lock exclusive,
// which barriers all incremental writes for that account for the duration of
// a rebuild.
//
// Lock records are never evicted; the set of live (account, key) pairs is
// bounded by the portfolio size.
type Locks struct {
	mu       sync.Mutex
	accounts map[string]*sync.RWMutex
	keys     map[domain.HoldingKey]*sync.Mutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{
		accounts: make(map[string]*sync.RWMutex),
		keys:     make(map[domain.HoldingKey]*sync.Mutex),
	}
}

// Account returns the lock for an account, creating it on first use.
func (l *Locks) Account(accountID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.accounts[accountID]
	if !ok {
		m = &sync.RWMutex{}
		l.accounts[accountID] = m
	}
	return m
}

// Key returns the lock for a holding key, creating it on first use.
func (l *Locks) Key(k domain.HoldingKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.keys[k]
	if !ok {
		m = &sync.Mutex{}
		l.keys[k] = m
	}
	return m
}

package services

import (
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// keyedMutex serializes read-check-write sequences per entity (wallet or
// match). Row locks cover the postgres path; this carries the same
// exclusion in-process so dialects without them behave identically.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns its unlock func. Entries are
// refcounted and removed once the last holder releases them.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// lockForUpdate adds SELECT ... FOR UPDATE on dialects that support it.
// The sqlite test dialect has no row locks; the keyed mutexes above carry
// the exclusion there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

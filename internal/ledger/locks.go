package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// lockTable serializes writes per contribution. Entries are reference
// counted and removed once the last holder releases, so the table stays
// bounded by the number of in-flight writes.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*lockEntry)}
}

// lock blocks until the key is held and returns the release function.
func (t *lockTable) lock(key uuid.UUID) func() {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

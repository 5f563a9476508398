package ledgerservice

import (
	"sort"
	"sync"
)

// lockTable hands out one RWMutex per account.
//
// Writers that need several accounts must go through lock, which acquires them in ascending
// account ID order. Two transfers in opposite directions therefore queue on the same first
// mutex instead of deadlocking.
type lockTable struct {
	mu    sync.Mutex
	locks map[int32]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[int32]*sync.RWMutex)}
}

func (t *lockTable) get(id int32) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.locks[id]
	if !ok {
		m = &sync.RWMutex{}
		t.locks[id] = m
	}

	return m
}

// lock takes the exclusive lock of every given account and returns the release func.
func (t *lockTable) lock(ids ...int32) (unlock func()) {
	ordered := lockOrder(ids)

	held := make([]*sync.RWMutex, 0, len(ordered))
	for _, id := range ordered {
		m := t.get(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// rlock takes the shared lock of one account.
func (t *lockTable) rlock(id int32) (unlock func()) {
	m := t.get(id)
	m.RLock()

	return m.RUnlock
}

// lockOrder returns the distinct ids in ascending order.
func lockOrder(ids []int32) []int32 {
	ordered := make([]int32, 0, len(ids))

	seen := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	return ordered
}

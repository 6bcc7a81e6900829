// Package bus provides the group fan-out transport behind
// core.GroupBus: an in-process implementation for single-process
// deployments and tests, and a Redis pub/sub implementation that spans
// gateway processes.
package bus

import (
	"sync"

	"github.com/nclime/roomcast/internal/core"
)

// membership is the per-process member bookkeeping shared by both bus
// implementations. Delivery runs under the read lock so that a
// returned Leave (which takes the write lock) is ordered after every
// in-progress local dispatch.
type membership struct {
	mu     sync.RWMutex
	groups map[string]map[string]core.GroupMember
}

func newMembership() *membership {
	return &membership{groups: make(map[string]map[string]core.GroupMember)}
}

// add registers m in group and reports whether the group is new to
// this process. Re-adding the same member is a no-op.
func (ms *membership) add(group string, m core.GroupMember) (first bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	members, ok := ms.groups[group]
	if !ok {
		members = make(map[string]core.GroupMember)
		ms.groups[group] = members
	}
	members[m.ID()] = m
	return !ok
}

// remove deregisters m and reports whether the group is now empty.
func (ms *membership) remove(group string, m core.GroupMember) (last bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	members, ok := ms.groups[group]
	if !ok {
		return false
	}
	delete(members, m.ID())
	if len(members) == 0 {
		delete(ms.groups, group)
		return true
	}
	return false
}

// dispatch delivers ev to every member of group in this process.
// Deliver is non-blocking by contract, so holding the read lock here
// is cheap.
func (ms *membership) dispatch(group string, ev core.Event) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, m := range ms.groups[group] {
		m.Deliver(ev)
	}
	return len(ms.groups[group])
}

// groupLocks hands out one mutex per group key, so a caller can hold a
// single group's transition across a blocking call without stalling
// other groups. An entry is dropped when its last holder releases.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func (g *groupLocks) lock(key string) (unlock func()) {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = make(map[string]*groupLock)
	}
	l, ok := g.locks[key]
	if !ok {
		l = &groupLock{}
		g.locks[key] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, key)
		}
		g.mu.Unlock()
	}
}

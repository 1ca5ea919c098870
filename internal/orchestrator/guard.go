package orchestrator

import "sync"

// Guard is a keyed lock table ensuring at most one in-flight answer pipeline
// per user, process-wide. Acquire is an atomic test-and-set; a plain
// read-then-write here would let two pipelines race into flight for one user.
//
// Each successful acquisition is stamped with a token. A pipeline that kept
// its token can check later whether it still owns the slot; after Clear (the
// user abandoned the request via the back action) the token no longer holds,
// and a late generator result must be discarded instead of delivered into a
// since-reused slot.
type Guard struct {
	mu    sync.Mutex
	next  uint64
	slots map[int64]uint64
}

// NewGuard constructs an empty guard table.
func NewGuard() *Guard {
	return &Guard{slots: make(map[int64]uint64)}
}

// Acquire attempts to take the slot for userID. It returns false when a
// pipeline is already in flight for that user; otherwise it takes the slot
// and returns a token identifying this acquisition.
func (g *Guard) Acquire(userID int64) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.slots[userID]; held {
		return 0, false
	}

	g.next++
	g.slots[userID] = g.next
	return g.next, true
}

// Release frees the slot only when token still owns it, so a release racing
// with Clear and a subsequent re-acquisition cannot free the new holder.
// Safe to call when the slot is already free.
func (g *Guard) Release(userID int64, token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, held := g.slots[userID]; held && current == token {
		delete(g.slots, userID)
	}
}

// Clear drops whatever holding exists for userID, regardless of token. Used
// when the user returns to the main menu while a request is outstanding; the
// in-flight generator call is not canceled, only orphaned.
func (g *Guard) Clear(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.slots, userID)
}

// Held reports whether any pipeline currently holds the slot for userID.
func (g *Guard) Held(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, held := g.slots[userID]
	return held
}

// Holds reports whether token still owns the slot for userID.
func (g *Guard) Holds(userID int64, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, held := g.slots[userID]
	return held && current == token
}

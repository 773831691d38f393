package ws

import (
	"sync"

	"github.com/parleychat/parley/internal/domain"
)

// Presence maps live connections to the identity announced on them.
// Identities are stored by value so they outlive whatever the client
// sent. A user with several open connections (multi-tab) has one entry
// per connection; online/offline announcements collapse by user id so
// a second tab never re-announces and closing one tab never announces
// offline while another remains.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]domain.User // connection id -> identity
	counts  map[string]int         // user id -> open connections
}

func NewPresence() *Presence {
	return &Presence{
		entries: make(map[string]domain.User),
		counts:  make(map[string]int),
	}
}

// Announce registers identity under connID, overwriting any previous
// identity for the same connection (idempotent re-join). It reports
// whether this is the user's first open connection, i.e. whether the
// caller should announce the user online.
func (p *Presence) Announce(connID string, identity domain.User) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.entries[connID]; ok {
		if prev.ID == identity.ID {
			p.entries[connID] = identity
			return false
		}
		p.decrement(prev.ID)
	}

	p.entries[connID] = identity
	p.counts[identity.ID]++

	return p.counts[identity.ID] == 1
}

// Forget removes the entry for connID. It returns the identity and
// true when this was the user's last open connection, meaning the
// caller should announce the user offline. Connections that never
// announced are a no-op.
func (p *Presence) Forget(connID string) (domain.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.entries[connID]
	if !ok {
		return domain.User{}, false
	}

	delete(p.entries, connID)
	return identity, p.decrement(identity.ID)
}

// decrement lowers the user's connection count and reports whether it
// reached zero. Caller must hold p.mu.
func (p *Presence) decrement(userID string) bool {
	count := p.counts[userID] - 1
	if count <= 0 {
		delete(p.counts, userID)
		return true
	}
	p.counts[userID] = count
	return false
}

// Snapshot returns the currently announced identities, one per user id.
// Order is unspecified.
func (p *Presence) Snapshot() []domain.User {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{}, len(p.counts))
	users := make([]domain.User, 0, len(p.counts))

	for _, identity := range p.entries {
		if _, ok := seen[identity.ID]; ok {
			continue
		}
		seen[identity.ID] = struct{}{}
		users = append(users, identity)
	}

	return users
}

// Identity returns the identity announced on connID, if any.
func (p *Presence) Identity(connID string) (domain.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identity, ok := p.entries[connID]
	return identity, ok
}

// Online reports the number of distinct users currently present.
func (p *Presence) Online() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.counts)
}

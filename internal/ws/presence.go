package ws

import (
	"sort"
	"sync"

	"promohub/internal/models"
)

// Presence maps user ids to their live connections and to the profile shown
// in the roster. A user is online while at least one connection is bound.
type Presence struct {
	mu       sync.Mutex
	conns    map[string]map[*Client]struct{}
	profiles map[string]models.PresenceEntry
	owner    map[*Client]string
}

func NewPresence() *Presence {
	return &Presence{
		conns:    make(map[string]map[*Client]struct{}),
		profiles: make(map[string]models.PresenceEntry),
		owner:    make(map[*Client]string),
	}
}

// Register binds c to userID, moving it off a previous owner if the
// connection re-joins under another id. It reports whether userID just came
// online and, when c changed owner, whether the previous owner went offline.
// A closed connection is never bound; ok is false then.
func (p *Presence) Register(userID string, c *Client) (first bool, departed string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.isClosed() {
		return false, "", false
	}

	if prev, bound := p.owner[c]; bound {
		if prev == userID {
			return false, "", true
		}
		if p.remove(prev, c) {
			departed = prev
		}
	}

	set, exists := p.conns[userID]
	if !exists {
		set = make(map[*Client]struct{})
		p.conns[userID] = set
	}
	set[c] = struct{}{}
	p.owner[c] = userID
	return !exists, departed, true
}

// Unregister removes c. It returns the owner and whether that was the
// owner's last connection. Unbound connections return "", false.
func (p *Presence) Unregister(c *Client) (userID string, departed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, bound := p.owner[c]
	if !bound {
		return "", false
	}
	return userID, p.remove(userID, c)
}

func (p *Presence) remove(userID string, c *Client) bool {
	delete(p.owner, c)
	set := p.conns[userID]
	delete(set, c)
	if len(set) > 0 {
		return false
	}
	delete(p.conns, userID)
	delete(p.profiles, userID)
	return true
}

// SetProfile overwrites the roster profile of an online user.
func (p *Presence) SetProfile(userID string, profile models.PresenceEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, online := p.conns[userID]; !online {
		return
	}
	profile.ID = userID
	p.profiles[userID] = profile
}

// Snapshot returns the roster sorted by user id.
func (p *Presence) Snapshot() []models.PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.PresenceEntry, 0, len(p.conns))
	for id := range p.conns {
		entry, ok := p.profiles[id]
		if !ok {
			entry = models.PresenceEntry{ID: id}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Presence) Connections(userID string) []*Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.conns[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (p *Presence) Online(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.conns[userID]
	return ok
}

// Count is the number of online users.
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

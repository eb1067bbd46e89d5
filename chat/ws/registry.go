package ws

import "sync"

// Registry maps live connections to the rooms they have joined and rooms to
// their current members. It is the only state shared by every connection's
// event handling, so all access goes through one lock. Broadcasts work on a
// snapshot of the membership taken at call time; delivery is best effort.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	joins map[*Client]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Client]struct{}),
		joins: make(map[*Client]map[string]struct{}),
	}
}

// Join adds the connection to a room. Joining a room twice is a no-op.
func (r *Registry) Join(c *Client, roomKey string) {
	if roomKey == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomKey]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[roomKey] = members
	}
	members[c] = struct{}{}

	joined, ok := r.joins[c]
	if !ok {
		joined = make(map[string]struct{})
		r.joins[c] = joined
	}
	joined[roomKey] = struct{}{}
}

// LeaveAll removes the connection from every room it had joined. Safe to
// call for a connection that never joined anything.
func (r *Registry) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomKey := range r.joins[c] {
		members := r.rooms[roomKey]
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, roomKey)
		}
	}
	delete(r.joins, c)
}

// MembersOf returns a snapshot of the room's current members. A room nobody
// has joined yields an empty slice, never an error.
func (r *Registry) MembersOf(roomKey string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.rooms[roomKey]))
	for c := range r.rooms[roomKey] {
		members = append(members, c)
	}
	return members
}

// RoomCount reports how many rooms currently have at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

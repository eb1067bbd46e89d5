package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, 16)}
}

func TestJoinIdempotent(t *testing.T) {
	registry := NewRegistry()
	c := newTestClient("c1")

	registry.Join(c, "room-a")
	registry.Join(c, "room-a")

	assert.Len(t, registry.MembersOf("room-a"), 1)
}

func TestMembersOfUnknownRoom(t *testing.T) {
	registry := NewRegistry()

	members := registry.MembersOf("never-joined")
	assert.NotNil(t, members)
	assert.Empty(t, members)
}

func TestLeaveAllRemovesEveryMembership(t *testing.T) {
	registry := NewRegistry()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")

	registry.Join(c1, "room-a")
	registry.Join(c1, "room-b")
	registry.Join(c2, "room-a")

	registry.LeaveAll(c1)

	assert.Empty(t, registry.MembersOf("room-b"))
	members := registry.MembersOf("room-a")
	assert.Len(t, members, 1)
	assert.Equal(t, "c2", members[0].ID)
}

func TestLeaveAllWithoutJoins(t *testing.T) {
	registry := NewRegistry()

	assert.NotPanics(t, func() {
		registry.LeaveAll(newTestClient("c1"))
	})
}

func TestRoomCountDropsEmptyRooms(t *testing.T) {
	registry := NewRegistry()
	c := newTestClient("c1")

	registry.Join(c, "room-a")
	assert.Equal(t, 1, registry.RoomCount())

	registry.LeaveAll(c)
	assert.Equal(t, 0, registry.RoomCount())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := newTestClient(fmt.Sprintf("c%d", n))
			registry.Join(c, "room-a")
			registry.Join(c, fmt.Sprintf("room-%d", n%5))
			registry.MembersOf("room-a")
			registry.LeaveAll(c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, registry.RoomCount())
}

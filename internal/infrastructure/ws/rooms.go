package ws

import (
	"sync"
)

// RoomManager tracks which connections are joined to which chat rooms
// and fans events out to them. It does not validate room existence or
// membership authorization; the persistence API already enforces that,
// and this layer routes for whoever asks.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client // chat id -> connection id -> client
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]*Client),
	}
}

// Join adds cl to the room's broadcast group. Idempotent.
func (rm *RoomManager) Join(cl *Client, chatID string) {
	if chatID == "" {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[chatID]
	if !ok {
		room = make(map[string]*Client)
		rm.rooms[chatID] = room
	}
	room[cl.ID] = cl

	// A disconnect that raced this join has already swept the room;
	// undo so the membership cannot outlive the connection.
	if cl.IsClosed() {
		delete(room, cl.ID)
		if len(room) == 0 {
			delete(rm.rooms, chatID)
		}
	}
}

func (rm *RoomManager) Leave(cl *Client, chatID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.removeLocked(cl.ID, chatID)
}

// LeaveAll removes cl from every room. Invoked unconditionally on
// disconnect so memberships never leak.
func (rm *RoomManager) LeaveAll(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for chatID := range rm.rooms {
		rm.removeLocked(cl.ID, chatID)
	}
}

func (rm *RoomManager) removeLocked(connID, chatID string) {
	room, ok := rm.rooms[chatID]
	if !ok {
		return
	}

	if _, ok := room[connID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(rm.rooms, chatID)
		}
	}
}

// Contains reports whether connID is joined to chatID.
func (rm *RoomManager) Contains(connID, chatID string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, ok := rm.rooms[chatID]
	if !ok {
		return false
	}
	_, ok = room[connID]
	return ok
}

// Broadcast queues msg on every connection in the room except the
// optionally excluded one. Enqueueing never blocks: a recipient whose
// queue is full is skipped, which is backpressure, not a sender error.
// It returns how many recipients received the event and how many were
// dropped. An unknown room is a no-op.
func (rm *RoomManager) Broadcast(chatID string, msg *Outbound, excludeConnID string) (delivered, dropped int) {
	rm.mu.RLock()
	room, ok := rm.rooms[chatID]
	if !ok {
		rm.mu.RUnlock()
		return 0, 0
	}

	// Snapshot so no lock is held while queueing.
	clients := make([]*Client, 0, len(room))
	for _, cl := range room {
		clients = append(clients, cl)
	}
	rm.mu.RUnlock()

	for _, cl := range clients {
		if cl.ID == excludeConnID {
			continue
		}

		if cl.enqueue(msg) {
			delivered++
		} else {
			dropped++
		}
	}

	return delivered, dropped
}

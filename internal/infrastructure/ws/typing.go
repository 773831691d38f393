package ws

import "sync"

// TypingEntry identifies one outstanding typing indicator.
type TypingEntry struct {
	ChatID string
	UserID string
}

// TypingTracker holds the per-room sets of users currently typing.
// Each entry remembers the connection that started it so an abrupt
// disconnect can clear its indicators instead of leaving them stuck.
// There is no inactivity timeout; entries end on stopTyping or on
// disconnect of the originating connection.
type TypingTracker struct {
	mu     sync.Mutex
	rooms  map[string]map[string]string // chat id -> user id -> origin connection id
	byConn map[string]map[string]string // connection id -> chat id -> user id
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		rooms:  make(map[string]map[string]string),
		byConn: make(map[string]map[string]string),
	}
}

// Start records (chatID, userID) as typing. It reports whether the
// state changed; a repeated typing event while already typing is a
// no-op so callers do not re-broadcast.
func (t *TypingTracker) Start(connID, chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[chatID]
	if !ok {
		room = make(map[string]string)
		t.rooms[chatID] = room
	}

	if _, typing := room[userID]; typing {
		return false
	}
	room[userID] = connID

	conns, ok := t.byConn[connID]
	if !ok {
		conns = make(map[string]string)
		t.byConn[connID] = conns
	}
	conns[chatID] = userID

	return true
}

// Stop clears (chatID, userID). It reports whether an entry existed;
// a stray stopTyping with nothing outstanding is a no-op.
func (t *TypingTracker) Stop(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[chatID]
	if !ok {
		return false
	}

	origin, typing := room[userID]
	if !typing {
		return false
	}

	t.removeLocked(origin, chatID, userID)
	return true
}

// ClearConnection force-clears every entry the connection originated
// and returns them so the caller can broadcast the stops.
func (t *TypingTracker) ClearConnection(connID string) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.byConn[connID]
	if !ok {
		return nil
	}

	entries := make([]TypingEntry, 0, len(conns))
	for chatID, userID := range conns {
		entries = append(entries, TypingEntry{ChatID: chatID, UserID: userID})
	}

	for _, e := range entries {
		t.removeLocked(connID, e.ChatID, e.UserID)
	}

	return entries
}

func (t *TypingTracker) removeLocked(connID, chatID, userID string) {
	if room, ok := t.rooms[chatID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(t.rooms, chatID)
		}
	}

	if conns, ok := t.byConn[connID]; ok {
		delete(conns, chatID)
		if len(conns) == 0 {
			delete(t.byConn, connID)
		}
	}
}

// Typing reports whether (chatID, userID) currently has an entry.
func (t *TypingTracker) Typing(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[chatID]
	if !ok {
		return false
	}
	_, typing := room[userID]
	return typing
}

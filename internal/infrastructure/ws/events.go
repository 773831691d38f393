package ws

import (
	"encoding/json"
	"time"

	"github.com/parleychat/parley/internal/domain"
)

// Client -> server events.
const (
	EventJoin       = "join"
	EventJoinRoom   = "joinRoom"
	EventNewMessage = "newMessage"
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
)

// Server -> client events.
const (
	EventActiveUsers       = "activeUsers"
	EventUserOnline        = "userOnline"
	EventUserOffline       = "userOffline"
	EventMessageReceived   = "messageReceived"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
)

// Envelope is the wire frame for inbound events. Data is decoded into
// the payload type matching Event; anything else is a protocol error.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is a server -> client event queued on a connection.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// RelayPayload is the already-persisted message a client asks the
// server to fan out. The relay never checks it against the store;
// persistence is the source of truth and must have happened first.
type RelayPayload struct {
	ID        string       `json:"id" validate:"required"`
	ChatID    string       `json:"chatId" validate:"required"`
	Sender    *domain.User `json:"sender,omitempty"`
	Content   string       `json:"content" validate:"required"`
	Type      string       `json:"type,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

type JoinRoomPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}

type TypingPayload struct {
	ChatID   string `json:"chatId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Username string `json:"username"`
}

type StopTypingPayload struct {
	ChatID string `json:"chatId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type TypingNotice struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

func NewActiveUsers(users []domain.User) *Outbound {
	return &Outbound{
		Event: EventActiveUsers,
		Data:  users,
	}
}

func NewUserOnline(identity domain.User) *Outbound {
	return &Outbound{
		Event: EventUserOnline,
		Data:  identity,
	}
}

func NewUserOffline(identity domain.User) *Outbound {
	return &Outbound{
		Event: EventUserOffline,
		Data:  identity,
	}
}

func NewMessageReceived(payload RelayPayload) *Outbound {
	return &Outbound{
		Event: EventMessageReceived,
		Data:  payload,
	}
}

func NewUserTyping(userID, username string) *Outbound {
	return &Outbound{
		Event: EventUserTyping,
		Data: TypingNotice{
			UserID:   userID,
			Username: username,
		},
	}
}

func NewUserStoppedTyping(userID string) *Outbound {
	return &Outbound{
		Event: EventUserStoppedTyping,
		Data: TypingNotice{
			UserID: userID,
		},
	}
}

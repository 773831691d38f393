package messaging

import "github.com/parleychat/parley/internal/domain"

const (
	SyncEventsQueue = "sync_events"
	DeadLetterQueue = "dead_letter_queue"
)

type MessageSentData struct {
	Message domain.Message `json:"message"`
}

type PresenceChangedData struct {
	User   domain.User `json:"user"`
	Online bool        `json:"online"`
}

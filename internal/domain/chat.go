package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

type Chat struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name,omitempty" bson:"name,omitempty"`
	Type          string    `json:"type" bson:"type"`
	Participants  []string  `json:"participants" bson:"participants"`
	AdminID       string    `json:"adminId,omitempty" bson:"adminId,omitempty"`
	LastMessageID string    `json:"lastMessageId,omitempty" bson:"lastMessageId,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

func NewChat(chatType, name, adminID string, participants []string) (*Chat, error) {
	switch chatType {
	case ChatTypePrivate, ChatTypeGroup:
	default:
		return nil, ErrInvalidInput
	}

	if chatType == ChatTypePrivate && len(participants) != 2 {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	return &Chat{
		ID:           uuid.NewString(),
		Name:         name,
		Type:         chatType,
		Participants: participants,
		AdminID:      adminID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type ChatRepository interface {
	Create(ctx context.Context, chat *Chat) error
	GetByID(ctx context.Context, id string) (*Chat, error)
	// FindPrivate returns an existing private chat between the two users, if any.
	FindPrivate(ctx context.Context, userA, userB string) (*Chat, error)
	ListByParticipant(ctx context.Context, userID string) ([]Chat, error)
	SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error
}

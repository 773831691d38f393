package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

const MaxMessageLength = 5000

type Message struct {
	ID        string    `json:"id" bson:"_id"`
	ChatID    string    `json:"chatId" bson:"chatId"`
	Sender    *User     `json:"sender" bson:"sender"`
	Content   string    `json:"content" bson:"content"`
	Type      string    `json:"type" bson:"type"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func NewMessage(sender *User, chatID, content, msgType string) (*Message, error) {
	if sender == nil || chatID == "" {
		return nil, ErrInvalidInput
	}

	content = strings.TrimSpace(content)
	if content == "" || len(content) > MaxMessageLength {
		return nil, ErrInvalidInput
	}

	if msgType == "" {
		msgType = MessageTypeText
	}

	switch msgType {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
	default:
		return nil, ErrInvalidInput
	}

	return &Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Sender:    sender,
		Content:   content,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	// GetByChatID pages newest-first; callers reverse to chronological order.
	GetByChatID(ctx context.Context, chatID string, page, limit int64) ([]Message, error)
	Delete(ctx context.Context, chatID, messageID string) error
}

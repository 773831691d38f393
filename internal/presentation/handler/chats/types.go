package chats

import (
	"time"

	"github.com/parleychat/parley/internal/domain"
)

type createChatRequest struct {
	Type         string   `json:"type" validate:"required,oneof=private group"`
	Name         string   `json:"name"`
	Participants []string `json:"participants" validate:"required,min=2,dive,required"`
}

type createMessageRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
	Type    string `json:"type" validate:"omitempty,oneof=text image file"`
}

type createMessageResponse struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chatId"`
	Sender    *domain.User `json:"sender"`
	Content   string       `json:"content"`
	Type      string       `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
}

type messagesResponse struct {
	ChatID   string           `json:"chatId"`
	Page     int64            `json:"page"`
	Limit    int64            `json:"limit"`
	Messages []domain.Message `json:"messages"`
}

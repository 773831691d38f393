package events

import (
	"context"
	"encoding/json"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/contracts"
	"github.com/parleychat/parley/internal/infrastructure/messaging"
)

// SyncPublisher mirrors live sync events onto the broker for
// out-of-process consumers (audit, analytics). Delivery is best-effort;
// the live broadcast path never depends on it.
type SyncPublisher struct {
	rabbitmq *messaging.RabbitMQ
}

func NewSyncPublisher(rabbitmq *messaging.RabbitMQ) *SyncPublisher {
	return &SyncPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *SyncPublisher) PublishMessageSent(ctx context.Context, message domain.Message) error {
	payload := messaging.MessageSentData{
		Message: message,
	}

	eventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	senderID := ""
	if message.Sender != nil {
		senderID = message.Sender.ID
	}

	return p.rabbitmq.PublishMessage(ctx, contracts.EventMessageSent, contracts.AmqpMessage{
		UserID: senderID,
		Data:   eventJSON,
	})
}

func (p *SyncPublisher) PublishUserOnline(ctx context.Context, user domain.User) error {
	return p.publishPresence(ctx, contracts.EventUserOnline, user, true)
}

func (p *SyncPublisher) PublishUserOffline(ctx context.Context, user domain.User) error {
	return p.publishPresence(ctx, contracts.EventUserOffline, user, false)
}

func (p *SyncPublisher) publishPresence(ctx context.Context, routingKey string, user domain.User, online bool) error {
	payload := messaging.PresenceChangedData{
		User:   user,
		Online: online,
	}

	eventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		UserID: user.ID,
		Data:   eventJSON,
	})
}

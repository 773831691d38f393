package events

import (
	"context"
	"encoding/json"

	"github.com/parleychat/parley/internal/infrastructure/contracts"
	"github.com/parleychat/parley/internal/infrastructure/logging"
	"github.com/parleychat/parley/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

type syncConsumer struct {
	rabbitmq *messaging.RabbitMQ
	log      logging.Logger
}

func NewSyncConsumer(rabbitmq *messaging.RabbitMQ, log logging.Logger) *syncConsumer {
	return &syncConsumer{
		rabbitmq: rabbitmq,
		log:      log,
	}
}

func (c *syncConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.SyncEventsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			c.log.Error(logging.RabbitMQ, logging.ExternalService, "failed to unmarshal sync event", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		c.log.Info(logging.RabbitMQ, logging.ExternalService, "sync event received", map[logging.ExtraKey]any{
			logging.EventName: msg.RoutingKey,
			logging.UserID:    message.UserID,
		})

		return nil
	})
}

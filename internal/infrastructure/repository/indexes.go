package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates the indexes every collection relies on. Run
// once at startup; index creation is idempotent.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	chats := &chatRepository{db: database}
	if err := chats.EnsureIndexes(ctx); err != nil {
		return err
	}

	messages := &messageRepository{db: database}
	return messages.EnsureIndexes(ctx)
}

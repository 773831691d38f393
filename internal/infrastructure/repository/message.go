package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRepository struct {
	db *mongo.Database
}

func NewMessageRepository(database *mongo.Database) domain.MessageRepository {
	return &messageRepository{
		db: database,
	}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	if message == nil || message.ChatID == "" {
		return domain.ErrInvalidInput
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	collection := r.db.Collection(db.MessagesCollection)

	_, err := collection.InsertOne(ctx, message)
	return err
}

func (r *messageRepository) GetByChatID(ctx context.Context, chatID string, page, limit int64) ([]domain.Message, error) {
	if chatID == "" {
		return nil, domain.ErrInvalidInput
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	collection := r.db.Collection(db.MessagesCollection)

	filter := bson.M{"chatId": chatID}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []domain.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) Delete(ctx context.Context, chatID, messageID string) error {
	if chatID == "" || messageID == "" {
		return domain.ErrInvalidInput
	}

	collection := r.db.Collection(db.MessagesCollection)

	res, err := collection.DeleteOne(ctx, bson.M{"_id": messageID, "chatId": chatID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrMessageNotFound
	}

	return nil
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.MessagesCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chatId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

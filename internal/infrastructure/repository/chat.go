package repository

import (
	"context"
	"errors"
	"time"

	"github.com/parleychat/parley/internal/domain"
	"github.com/parleychat/parley/internal/infrastructure/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type chatRepository struct {
	db *mongo.Database
}

func NewChatRepository(database *mongo.Database) domain.ChatRepository {
	return &chatRepository{
		db: database,
	}
}

func (r *chatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if chat == nil || chat.ID == "" {
		return domain.ErrInvalidInput
	}

	collection := r.db.Collection(db.ChatsCollection)

	_, err := collection.InsertOne(ctx, chat)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrChatAlreadyExists
	}
	return err
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	collection := r.db.Collection(db.ChatsCollection)

	var chat domain.Chat
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}

	return &chat, nil
}

func (r *chatRepository) FindPrivate(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	collection := r.db.Collection(db.ChatsCollection)

	filter := bson.M{
		"type":         domain.ChatTypePrivate,
		"participants": bson.M{"$all": []string{userA, userB}},
	}

	var chat domain.Chat
	err := collection.FindOne(ctx, filter).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}

	return &chat, nil
}

func (r *chatRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Chat, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}

	collection := r.db.Collection(db.ChatsCollection)

	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []domain.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}

	return chats, nil
}

func (r *chatRepository) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	if chatID == "" || messageID == "" {
		return domain.ErrInvalidInput
	}

	collection := r.db.Collection(db.ChatsCollection)

	update := bson.M{
		"$set": bson.M{
			"lastMessageId": messageID,
			"updatedAt":     at,
		},
	}

	res, err := collection.UpdateOne(ctx, bson.M{"_id": chatID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrChatNotFound
	}

	return nil
}

func (r *chatRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.ChatsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "participants", Value: 1},
				{Key: "updatedAt", Value: -1},
			},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/chatmesh/server/internal/domain"
)

const messagesCollection = "messages"

// MongoMessageRepository implements MessageRepository on MongoDB.
type MongoMessageRepository struct {
	coll *mongo.Collection
}

func NewMongoMessageRepository(m *Mongo) *MongoMessageRepository {
	return &MongoMessageRepository{coll: m.Collection(messagesCollection)}
}

func (r *MongoMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *MongoMessageRepository) MarkRead(ctx context.Context, messageID, conversationID, userID string) (bool, error) {
	return r.addToStatusSet(ctx, messageID, conversationID, userID, "readBy")
}

func (r *MongoMessageRepository) MarkDelivered(ctx context.Context, messageID, conversationID, userID string) (bool, error) {
	return r.addToStatusSet(ctx, messageID, conversationID, userID, "deliveredTo")
}

// addToStatusSet performs the idempotent set insertion: the filter only
// matches when the user is not yet in the set, so a repeated call
// matches nothing and reports false.
func (r *MongoMessageRepository) addToStatusSet(ctx context.Context, messageID, conversationID, userID, field string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{
		"_id":            messageID,
		"conversationId": conversationID,
		field:            bson.M{"$ne": userID},
	}, bson.M{
		"$addToSet": bson.M{field: userID},
	})
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", field, err)
	}
	return res.ModifiedCount > 0, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chatmesh/server/internal/domain"
)

const conversationsCollection = "conversations"

// MongoConversationRepository implements ConversationRepository on MongoDB.
type MongoConversationRepository struct {
	coll *mongo.Collection
}

func NewMongoConversationRepository(m *Mongo) *MongoConversationRepository {
	return &MongoConversationRepository{coll: m.Collection(conversationsCollection)}
}

func (r *MongoConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	return &conv, nil
}

// IsMember checks current membership with a single filtered count, the
// same query shape the join and send paths authorize with.
func (r *MongoConversationRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"_id":     conversationID,
		"members": userID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

func (r *MongoConversationRepository) IDsForMember(ctx context.Context, userID string) ([]string, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"members": userID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode conversation ids: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *MongoConversationRepository) PrivatePartners(ctx context.Context, userID string) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "members", bson.M{
		"type":    domain.ConversationPrivate,
		"members": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query private partners: %w", err)
	}

	partners := make([]string, 0, len(values))
	for _, v := range values {
		id, ok := v.(string)
		if !ok || id == userID {
			continue
		}
		partners = append(partners, id)
	}
	return partners, nil
}

func (r *MongoConversationRepository) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{
		"$set": bson.M{"lastMessage": messageID, "updatedAt": at},
	})
	if err != nil {
		return fmt.Errorf("failed to update lastMessage: %w", err)
	}
	return nil
}

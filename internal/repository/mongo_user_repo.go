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

const usersCollection = "users"

// MongoUserRepository implements UserRepository on MongoDB.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(m *Mongo) *MongoUserRepository {
	return &MongoUserRepository{coll: m.Collection(usersCollection)}
}

// profileProjection excludes credential fields from every read.
var profileProjection = bson.M{
	"username":     1,
	"avatar":       1,
	"isOnline":     1,
	"lastSeen":     1,
	"deviceTokens": 1,
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.coll.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(profileProjection)).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return &user, nil
}

func (r *MongoUserRepository) SetPresence(ctx context.Context, id string, online bool, lastSeen *time.Time) error {
	update := bson.M{"isOnline": online}
	if lastSeen != nil {
		update["lastSeen"] = *lastSeen
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("failed to update presence for %s: %w", id, err)
	}
	return nil
}

func (r *MongoUserRepository) FindOfflineWithDevices(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{
		"_id":          bson.M{"$in": ids},
		"isOnline":     false,
		"deviceTokens": bson.M{"$exists": true, "$ne": bson.A{}},
	}, options.Find().SetProjection(profileProjection))
	if err != nil {
		return nil, fmt.Errorf("failed to query offline users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode offline users: %w", err)
	}
	return users, nil
}

package providerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloomdispatch/database"
	"bloomdispatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoProviderRepo implements ProviderRepository using MongoDB.
type MongoProviderRepo struct {
	coll *mongo.Collection
}

// NewMongoProviderRepo creates a repository on the "providers" collection.
func NewMongoProviderRepo() *MongoProviderRepo {
	return NewMongoProviderRepoWithDB(database.Database())
}

func NewMongoProviderRepoWithDB(db *mongo.Database) *MongoProviderRepo {
	return &MongoProviderRepo{coll: db.Collection("providers")}
}

func (r *MongoProviderRepo) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var provider models.Provider
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&provider); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("provider %s: %w", id, database.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch provider with id %s: %w", id, err)
	}
	return &provider, nil
}

func (r *MongoProviderRepo) FindActiveByService(ctx context.Context, serviceTypeID, excludeID string) ([]models.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"active":           true,
		"service_type_ids": serviceTypeID,
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find providers for service %s: %w", serviceTypeID, err)
	}
	defer cursor.Close(ctx)

	var providers []models.Provider
	if err := cursor.All(ctx, &providers); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return providers, nil
}

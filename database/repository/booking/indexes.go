package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the response and sweep queries rely on.
func (repo *MongoBookingRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bookingIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "series_id", Value: 1}, {Key: "occurrence_index", Value: 1}}},
		// sweep set A
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		// sweep set B
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_provider_id", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		{Keys: bson.D{{Key: "responding_provider_id", Value: 1}, {Key: "scheduled_at", Value: 1}}},
	}
	if _, err := repo.bookingColl.Indexes().CreateMany(ctx, bookingIdx); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	historyIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "recorded_at", Value: 1}}},
	}
	if _, err := repo.historyColl.Indexes().CreateMany(ctx, historyIdx); err != nil {
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}

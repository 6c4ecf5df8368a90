package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloomdispatch/database"
	"bloomdispatch/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	bookingColl *mongo.Collection
	historyColl *mongo.Collection
}

// NewMongoBookingRepo constructs a repository on the application database.
func NewMongoBookingRepo() *MongoBookingRepo {
	return NewMongoBookingRepoWithDB(database.Database())
}

// NewMongoBookingRepoWithDB constructs a repository on an explicit database.
func NewMongoBookingRepoWithDB(db *mongo.Database) *MongoBookingRepo {
	return &MongoBookingRepo{
		bookingColl: db.Collection("bookings"),
		historyColl: db.Collection("booking_status_history"),
	}
}

func (repo *MongoBookingRepo) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	if err := repo.bookingColl.FindOne(ctx, filter, opts...).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	if err := booking.Validate(); err != nil {
		return nil, fmt.Errorf("booking %s failed validation: %w", booking.ID, err)
	}
	return &booking, nil
}

func (repo *MongoBookingRepo) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := repo.bookingColl.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raws []bson.Raw
	for cursor.Next(ctx) {
		raws = append(raws, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return decodeBookings(raws, zap.L()), nil
}

// decodeBookings keeps every document that decodes and validates. A corrupt
// document is logged and skipped so it cannot stall the rest of a sweep.
func decodeBookings(raws []bson.Raw, logger *zap.Logger) []models.Booking {
	bookings := make([]models.Booking, 0, len(raws))
	for _, raw := range raws {
		var b models.Booking
		if err := bson.Unmarshal(raw, &b); err != nil {
			logger.Warn("skipping undecodable booking",
				zap.String("id", rawID(raw)),
				zap.Error(err))
			continue
		}
		if err := b.Validate(); err != nil {
			logger.Warn("skipping invalid booking",
				zap.String("id", b.ID),
				zap.String("reference", b.Reference),
				zap.Error(err))
			continue
		}
		bookings = append(bookings, b)
	}
	return bookings
}

func rawID(raw bson.Raw) string {
	if v, ok := raw.Lookup("id").StringValueOK(); ok {
		return v
	}
	return ""
}

func (repo *MongoBookingRepo) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	b, err := repo.findOne(ctx, bson.M{"reference": reference})
	if err != nil {
		return nil, fmt.Errorf("error fetching booking %s: %w", reference, err)
	}
	return b, nil
}

func (repo *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b, err := repo.findOne(ctx, bson.M{"id": id})
	if err != nil {
		return nil, fmt.Errorf("error fetching booking with id %s: %w", id, err)
	}
	return b, nil
}

func (repo *MongoBookingRepo) GetInitialOccurrence(ctx context.Context, seriesID string) (*models.Booking, error) {
	filter := bson.M{
		"series_id": seriesID,
		"$or": bson.A{
			bson.M{"occurrence_index": 0},
			bson.M{"occurrence_index": nil},
		},
	}
	b, err := repo.findOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching initial occurrence of series %s: %w", seriesID, err)
	}
	return b, nil
}

func (repo *MongoBookingRepo) StampResponseRecorded(ctx context.Context, bookingID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := repo.bookingColl.UpdateOne(ctx,
		bson.M{"id": bookingID},
		bson.M{"$set": bson.M{"response_recorded_at": at}},
	)
	if err != nil {
		return fmt.Errorf("error stamping response on booking %s: %w", bookingID, err)
	}
	return nil
}

// TransitionStatus is the only write that moves a booking between statuses.
// A single-document UpdateOne is atomic, so the status filter is the guard.
func (repo *MongoBookingRepo) TransitionStatus(ctx context.Context, bookingID string, from []models.BookingStatus, update TransitionUpdate) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"status":     update.Status,
		"updated_at": update.UpdatedAt,
	}
	if update.RespondingProviderID != "" {
		set["responding_provider_id"] = update.RespondingProviderID
	}

	filter := bson.M{
		"id":     bookingID,
		"status": bson.M{"$in": from},
	}
	res, err := repo.bookingColl.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("error transitioning booking %s to %s: %w", bookingID, update.Status, err)
	}
	return res.MatchedCount, nil
}

func (repo *MongoBookingRepo) ListSeriesFollowers(ctx context.Context, seriesID, excludeBookingID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	if seriesID == "" {
		return nil, nil
	}
	filter := bson.M{
		"series_id": seriesID,
		"id":        bson.M{"$ne": excludeBookingID},
		"status":    bson.M{"$in": statuses},
	}
	out, err := repo.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "occurrence_index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing followers of series %s: %w", seriesID, err)
	}
	return out, nil
}

func excludeReference(pattern string) bson.M {
	if pattern == "" {
		return bson.M{}
	}
	return bson.M{"reference": bson.M{"$not": primitive.Regex{Pattern: pattern}}}
}

func initialOccurrenceOnly() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"occurrence_index": 0},
		bson.M{"occurrence_index": nil},
	}}
}

func (repo *MongoBookingRepo) FindStaleRequested(ctx context.Context, q StaleRequestedQuery) ([]models.Booking, error) {
	filter := bson.M{
		"status":               models.StatusRequested,
		"response_recorded_at": nil,
		"created_at":           bson.M{"$lt": q.CreatedBefore},
		"$and": bson.A{
			initialOccurrenceOnly(),
			bson.M{"$or": bson.A{
				bson.M{"updated_at": nil},
				bson.M{"updated_at": bson.M{"$lt": q.UpdatedBefore}},
			}},
			excludeReference(q.ExcludedReferencePattern),
		},
	}
	out, err := repo.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error finding stale requested bookings: %w", err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) FindStaleReassigned(ctx context.Context, q StaleReassignedQuery) ([]models.Booking, error) {
	filter := bson.M{
		"status":     bson.M{"$in": []models.BookingStatus{models.StatusSeekingAlternate, models.StatusTimeoutReassigned}},
		"updated_at": bson.M{"$lt": q.UpdatedBefore},
		"$and": bson.A{
			initialOccurrenceOnly(),
			excludeReference(q.ExcludedReferencePattern),
		},
	}
	out, err := repo.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error finding stale reassigned bookings: %w", err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) ListProviderBookingsBetween(ctx context.Context, providerID string, from, to time.Time, statuses []models.BookingStatus, excludeBookingID string) ([]models.Booking, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"assigned_provider_id": providerID},
			bson.M{"responding_provider_id": providerID},
		},
		"scheduled_at": bson.M{"$gte": from, "$lt": to},
		"status":       bson.M{"$in": statuses},
	}
	if excludeBookingID != "" {
		filter["id"] = bson.M{"$ne": excludeBookingID}
	}
	out, err := repo.find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings for provider %s: %w", providerID, err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) MarkPaymentCaptured(ctx context.Context, bookingID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := repo.bookingColl.UpdateOne(ctx,
		bson.M{"id": bookingID},
		bson.M{"$set": bson.M{"payment_status": models.PaymentCaptured, "payment_captured_at": at}},
	)
	if err != nil {
		return fmt.Errorf("error marking payment captured on booking %s: %w", bookingID, err)
	}
	return nil
}

func (repo *MongoBookingRepo) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.historyColl.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("error appending history for booking %s: %w", entry.BookingID, err)
	}
	return nil
}

func (repo *MongoBookingRepo) ListHistory(ctx context.Context, bookingID string) ([]models.StatusHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})
	cursor, err := repo.historyColl.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing history for booking %s: %w", bookingID, err)
	}
	defer cursor.Close(ctx)

	var entries []models.StatusHistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return entries, nil
}

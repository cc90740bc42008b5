package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BookingRepository persists bookings and implements the conditional write
// the lifecycle engine requires.
type BookingRepository struct {
	collection *mongo.Collection
}

func NewBookingRepository(db *mongo.Client) *BookingRepository {
	return &BookingRepository{
		collection: config.GetCollection(db, "bookings"),
	}
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	booking.ID = primitive.NewObjectID()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return nil, &lifecycle.PersistenceError{Op: "create booking", Err: err}
	}
	return booking, nil
}

func (r *BookingRepository) GetBooking(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var booking models.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &lifecycle.ValidationError{Reason: "booking not found"}
		}
		return nil, &lifecycle.PersistenceError{Op: "get booking", Err: err}
	}
	return &booking, nil
}

// UpdateBooking applies update only while the booking still holds the
// expected status. A status filter miss on an existing booking means
// another actor committed first, which surfaces as a stale-state conflict.
func (r *BookingRepository) UpdateBooking(ctx context.Context, id primitive.ObjectID, update bson.M, expected lifecycle.Status) (*models.Booking, error) {
	filter := bson.M{"_id": id, "status": string(expected)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &lifecycle.PersistenceError{Op: "update booking", Err: err}
	}

	// Distinguish a concurrent transition from a missing document.
	current, getErr := r.GetBooking(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &lifecycle.StaleStateError{Expected: expected, Actual: lifecycle.Status(current.Status)}
}

func (r *BookingRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]models.Booking, error) {
	return r.list(ctx, bson.M{"clientId": clientID})
}

func (r *BookingRepository) ListByProvider(ctx context.Context, providerID primitive.ObjectID) ([]models.Booking, error) {
	return r.list(ctx, bson.M{"providerId": providerID})
}

// ListByStatus is used by the admin dashboard; an empty status lists all.
func (r *BookingRepository) ListByStatus(ctx context.Context, status string) ([]models.Booking, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.list(ctx, filter)
}

func (r *BookingRepository) ListAll(ctx context.Context) ([]models.Booking, error) {
	return r.list(ctx, bson.M{})
}

// ListPendingApproval returns new bookings that still need the admin gate.
func (r *BookingRepository) ListPendingApproval(ctx context.Context) ([]models.Booking, error) {
	return r.list(ctx, bson.M{
		"status":        string(lifecycle.StatusPending),
		"adminApproved": false,
	})
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, &lifecycle.PersistenceError{Op: "list bookings", Err: err}
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, &lifecycle.PersistenceError{Op: "decode bookings", Err: err}
	}
	return bookings, nil
}

// PendingApprovalCount feeds the admin stats endpoint.
func (r *BookingRepository) PendingApprovalCount(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"status":        string(lifecycle.StatusPending),
		"adminApproved": false,
	})
	if err != nil {
		return 0, &lifecycle.PersistenceError{Op: "count pending bookings", Err: err}
	}
	return count, nil
}

// CountByStatus aggregates booking counts per status for the admin stats.
func (r *BookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &lifecycle.PersistenceError{Op: "aggregate booking statuses", Err: err}
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, &lifecycle.PersistenceError{Op: "decode status counts", Err: err}
		}
		counts[row.Status] = row.Count
	}
	return counts, cursor.Err()
}

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
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Client) *UserRepository {
	return &UserRepository{
		collection: config.GetCollection(db, "users"),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &lifecycle.ValidationError{Reason: "user not found"}
		}
		return nil, &lifecycle.PersistenceError{Op: "get user", Err: err}
	}
	return &user, nil
}

func (r *UserRepository) UpdateProfilePicture(userID primitive.ObjectID, profileURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"_id": userID}
	update := bson.M{
		"$set": bson.M{
			"profilePic": profileURL,
			"updatedAt":      time.Now(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

func (r *UserRepository) UpdateFCMToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"fcmToken": token, "updatedAt": time.Now()},
	})
	return err
}

// CreditEarnings adds a completed booking's payout to the provider's
// running totals.
func (r *UserRepository) CreditEarnings(ctx context.Context, providerID primitive.ObjectID, amount float64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": providerID, "role": models.RoleProvider},
		bson.M{
			"$inc": bson.M{"providerInfo.totalEarnings": amount},
			"$set": bson.M{"updatedAt": time.Now()},
		})
	if err != nil {
		return &lifecycle.PersistenceError{Op: "credit earnings", Err: err}
	}
	return nil
}

// controllers/review_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReviewController struct {
	db       *mongo.Client
	bookings *repositories.BookingRepository
	validate *validator.Validate
}

func NewReviewController(db *mongo.Client) *ReviewController {
	return &ReviewController{
		db:       db,
		bookings: repositories.NewBookingRepository(db),
		validate: validator.New(),
	}
}

// reviewedUpdate flags the booking as reviewed and copies the rating onto it
// so provider listings can show it without joining the reviews collection.
func reviewedUpdate(rating int, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"reviewed":     true,
		"reviewRating": rating,
		"reviewedAt":   now,
		"updatedAt":    now,
	}}
}

// CreateReview lets the client rate a completed booking once
func (rc *ReviewController) CreateReview(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, rc.db)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := rc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	bookingID, err := primitive.ObjectIDFromHex(req.BookingID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	ctx := c.Request().Context()
	booking, err := rc.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Booking not found",
		})
	}
	if booking.ClientID != user.ID {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only the booking's client can review it",
		})
	}
	if booking.Status != string(lifecycle.StatusCompleted) {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Only completed bookings can be reviewed",
		})
	}
	if booking.Reviewed {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "This booking has already been reviewed",
		})
	}
	if booking.ProviderID == nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Booking has no provider to review",
		})
	}

	review := models.Review{
		ID:         primitive.NewObjectID(),
		BookingID:  booking.ID,
		ProviderID: *booking.ProviderID,
		ClientID:   user.ID,
		Rating:     req.Rating,
		Comment:    utils.SanitizeInput(req.Comment),
		CreatedAt:  time.Now(),
	}

	// The unique index on bookingId backstops concurrent submissions
	if _, err := config.GetCollection(rc.db, "reviews").InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "This booking has already been reviewed",
			})
		}
		log.Printf("Failed to create review: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create review",
		})
	}

	_, err = config.GetCollection(rc.db, "bookings").UpdateOne(ctx,
		bson.M{"_id": booking.ID}, reviewedUpdate(req.Rating, time.Now()))
	if err != nil {
		log.Printf("Failed to flag booking %s as reviewed: %v", booking.ID.Hex(), err)
	}

	go rc.updateProviderRating(*booking.ProviderID)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Review created successfully",
		Data:    review,
	})
}

// updateProviderRating recalculates the provider's average from all reviews
func (rc *ReviewController) updateProviderRating(providerID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"providerId": providerID}},
		{"$group": bson.M{
			"_id":           nil,
			"averageRating": bson.M{"$avg": "$rating"},
			"count":         bson.M{"$sum": 1},
		}},
	}

	cursor, err := config.GetCollection(rc.db, "reviews").Aggregate(ctx, pipeline)
	if err != nil {
		log.Printf("Failed to aggregate reviews for provider %s: %v", providerID.Hex(), err)
		return
	}
	defer cursor.Close(ctx)

	var result struct {
		AverageRating float64 `bson:"averageRating"`
		Count         int     `bson:"count"`
	}
	if !cursor.Next(ctx) || cursor.Decode(&result) != nil {
		return
	}

	_, err = config.GetCollection(rc.db, "users").UpdateOne(ctx,
		bson.M{"_id": providerID},
		bson.M{"$set": bson.M{
			"providerInfo.rating":      result.AverageRating,
			"providerInfo.ratingCount": result.Count,
			"updatedAt":                time.Now(),
		}})
	if err != nil {
		log.Printf("Failed to update rating for provider %s: %v", providerID.Hex(), err)
	}
}

// GetReviewsByProvider lists reviews for a provider, newest first
func (rc *ReviewController) GetReviewsByProvider(c echo.Context) error {
	providerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid provider ID",
		})
	}

	ctx := c.Request().Context()
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := config.GetCollection(rc.db, "reviews").Find(ctx, bson.M{"providerId": providerID}, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve reviews",
		})
	}
	defer cursor.Close(ctx)

	var reviews []models.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve reviews",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Reviews retrieved successfully",
		Data:    reviews,
	})
}

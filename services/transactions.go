package services

import (
	"context"
	"log"
	"time"

	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RecordPayment writes a paid transaction row for a booking. Failures are
// logged, not returned: the booking transition has already committed and a
// missing ledger row is recoverable from the gateway dashboard.
func RecordPayment(db *mongo.Client, booking *models.Booking, method, ref string) {
	txn := models.Transaction{
		ID:        primitive.NewObjectID(),
		BookingID: booking.ID,
		ClientID:  booking.ClientID,
		Amount:    booking.TotalAmount,
		Method:    method,
		Ref:       ref,
		Status:    "paid",
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := config.GetCollection(db, "transactions").InsertOne(ctx, txn); err != nil {
		log.Printf("Failed to record transaction for booking %s: %v", booking.ID.Hex(), err)
	}
}

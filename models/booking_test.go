package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// bsonTime keeps timestamps at the millisecond UTC precision Mongo stores,
// so round-tripped values compare equal.
func bsonTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func fullBooking() Booking {
	now := bsonTime(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	providerID := primitive.NewObjectID()
	reviewedAt := now.Add(time.Hour)
	completedAt := now.Add(48 * time.Hour)

	return Booking{
		ID:            primitive.NewObjectID(),
		ClientID:      primitive.NewObjectID(),
		ProviderID:    &providerID,
		Status:        "payment_received",
		AdminApproved: true,

		ServiceType:   "plumbing",
		Description:   "Leaking kitchen sink",
		ScheduledDate: now.Add(24 * time.Hour),
		ScheduledTime: "09:00",
		Address:       "123 Mabini St, Quezon City",
		Location:      &GeoPoint{Lat: 14.6760, Lng: 121.0437},

		IsNegotiable:      true,
		OfferedPrice:      450,
		CounterOfferPrice: 500,
		ProviderPrice:     500,
		SystemFee:         25,
		TotalAmount:       675,

		AdditionalCharges: []AdditionalCharge{
			{ID: "ch1", Reason: "replacement pipe", Amount: 150, Status: "approved", CreatedAt: now, ReviewedAt: &reviewedAt},
			{ID: "ch2", Reason: "extra fittings", Amount: 80, Status: "rejected", CreatedAt: now, ReviewedAt: &reviewedAt},
		},
		NegotiationHistory: []NegotiationEntry{
			{ID: "n1", Type: "offer", Amount: 450, Note: "budget is tight", By: "client", ByUserID: primitive.NewObjectID(), CreatedAt: now},
			{ID: "n2", Type: "counter", Amount: 500, By: "provider", ByUserID: providerID, CreatedAt: now.Add(time.Minute)},
			{ID: "n3", Type: "accept", Amount: 500, By: "client", ByUserID: primitive.NewObjectID(), CreatedAt: now.Add(2 * time.Minute)},
		},

		PaymentMethod: "gcash",
		PaymentRef:    "src_abc123",

		Reviewed:     true,
		ReviewRating: 5,
		CompletedAt:  &completedAt,

		MediaTypes:    []string{"image"},
		MediaURLs:     []string{"/uploads/bookings/sink.jpg"},
		ThumbnailURLs: []string{"/uploads/thumbnails/sink.jpg"},

		CreatedAt: now,
		UpdatedAt: now.Add(3 * time.Minute),
	}
}

func TestBookingJSONRoundTrip(t *testing.T) {
	original := fullBooking()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Booking
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestBookingBSONRoundTrip(t *testing.T) {
	original := fullBooking()

	data, err := bson.Marshal(original)
	require.NoError(t, err)

	var decoded Booking
	require.NoError(t, bson.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)

	// The negotiation audit trail survives storage in order
	require.Len(t, decoded.NegotiationHistory, 3)
	assert.Equal(t, "offer", decoded.NegotiationHistory[0].Type)
	assert.Equal(t, "counter", decoded.NegotiationHistory[1].Type)
	assert.Equal(t, "accept", decoded.NegotiationHistory[2].Type)
	assert.Equal(t, 5, decoded.ReviewRating)
}

func TestTransitionRequestHidesPaymentFields(t *testing.T) {
	// The payment layer fills these in; clients must not be able to bind them.
	var req TransitionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"amount":500,"paymentMethod":"cash","paymentRef":"fake"}`), &req))
	assert.Equal(t, float64(500), req.Amount)
	assert.Empty(t, req.PaymentMethod)
	assert.Empty(t, req.PaymentRef)
}

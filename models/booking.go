package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking model. Status only changes through the lifecycle engine; the
// pricing fields (systemFee, totalAmount) are caches of the fee formula and
// are rewritten on every accepted offer or charge review.
type Booking struct {
	ID            primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	ClientID      primitive.ObjectID  `json:"clientId" bson:"clientId"`
	ProviderID    *primitive.ObjectID `json:"providerId,omitempty" bson:"providerId,omitempty"`
	Status        string              `json:"status" bson:"status"`
	AdminApproved bool                `json:"adminApproved" bson:"adminApproved"`

	ServiceType   string    `json:"serviceType" bson:"serviceType"`
	Description   string    `json:"description,omitempty" bson:"description,omitempty"`
	ScheduledDate time.Time `json:"scheduledDate" bson:"scheduledDate"`
	ScheduledTime string    `json:"scheduledTime" bson:"scheduledTime"`
	Address       string    `json:"address,omitempty" bson:"address,omitempty"`
	Location      *GeoPoint `json:"location,omitempty" bson:"location,omitempty"`

	IsNegotiable       bool    `json:"isNegotiable" bson:"isNegotiable"`
	ProviderFixedPrice float64 `json:"providerFixedPrice,omitempty" bson:"providerFixedPrice,omitempty"`
	OfferedPrice       float64 `json:"offeredPrice,omitempty" bson:"offeredPrice,omitempty"`
	CounterOfferPrice  float64 `json:"counterOfferPrice,omitempty" bson:"counterOfferPrice,omitempty"`
	ProviderPrice      float64 `json:"providerPrice,omitempty" bson:"providerPrice,omitempty"`
	SystemFee          float64 `json:"systemFee" bson:"systemFee"`
	TotalAmount        float64 `json:"totalAmount" bson:"totalAmount"`

	AdditionalCharges  []AdditionalCharge `json:"additionalCharges,omitempty" bson:"additionalCharges,omitempty"`
	NegotiationHistory []NegotiationEntry `json:"negotiationHistory,omitempty" bson:"negotiationHistory,omitempty"`

	PaymentMethod string `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"` // "cash", "gcash", "maya"
	PaymentRef    string `json:"paymentRef,omitempty" bson:"paymentRef,omitempty"`

	CancellationReason string     `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	DisputeReason      string     `json:"disputeReason,omitempty" bson:"disputeReason,omitempty"`
	DisputeResolution  string     `json:"disputeResolution,omitempty" bson:"disputeResolution,omitempty"`
	DisputedFrom       string     `json:"disputedFrom,omitempty" bson:"disputedFrom,omitempty"`
	Refunded           bool       `json:"refunded,omitempty" bson:"refunded,omitempty"`
	RefundAmount       float64    `json:"refundAmount,omitempty" bson:"refundAmount,omitempty"`
	Reviewed           bool       `json:"reviewed,omitempty" bson:"reviewed,omitempty"`
	ReviewRating       int        `json:"reviewRating,omitempty" bson:"reviewRating,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	MediaTypes    []string `json:"mediaTypes,omitempty" bson:"mediaTypes,omitempty"`
	MediaURLs     []string `json:"mediaUrls,omitempty" bson:"mediaUrls,omitempty"`
	ThumbnailURLs []string `json:"thumbnailUrls,omitempty" bson:"thumbnailUrls,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// AdditionalCharge is a provider-proposed surcharge that the client approves
// or rejects independently of the main booking status.
type AdditionalCharge struct {
	ID         string     `json:"id" bson:"id"`
	Reason     string     `json:"reason" bson:"reason"`
	Amount     float64    `json:"amount" bson:"amount"`
	Status     string     `json:"status" bson:"status"` // "pending", "approved", "rejected"
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
}

// NegotiationEntry is one append-only line of the offer/counter/accept audit
// trail.
type NegotiationEntry struct {
	ID        string             `json:"id" bson:"id"`
	Type      string             `json:"type" bson:"type"` // "offer", "counter", "accept"
	Amount    float64            `json:"amount" bson:"amount"`
	Note      string             `json:"note,omitempty" bson:"note,omitempty"`
	By        string             `json:"by" bson:"by"` // "client", "provider"
	ByUserID  primitive.ObjectID `json:"byUserId" bson:"byUserId"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// GeoPoint model
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// HasAdditionalPending reports whether any charge is still waiting for the
// client's review.
func (b *Booking) HasAdditionalPending() bool {
	for _, c := range b.AdditionalCharges {
		if c.Status == "pending" {
			return true
		}
	}
	return false
}

// ApprovedCharges returns the charges the client has approved.
func (b *Booking) ApprovedCharges() []AdditionalCharge {
	var approved []AdditionalCharge
	for _, c := range b.AdditionalCharges {
		if c.Status == "approved" {
			approved = append(approved, c)
		}
	}
	return approved
}

// BasePrice returns the price the fee math runs on: the agreed price once
// negotiation settled, the client's offer while negotiating, otherwise the
// provider's posted rate.
func (b *Booking) BasePrice() float64 {
	if b.ProviderPrice > 0 {
		return b.ProviderPrice
	}
	if b.OfferedPrice > 0 {
		return b.OfferedPrice
	}
	return b.ProviderFixedPrice
}

// BookingRequest model for creating a booking
type BookingRequest struct {
	ProviderID     string    `json:"providerId"`
	ServiceType    string    `json:"serviceType" validate:"required"`
	Description    string    `json:"description"`
	ScheduledDate  time.Time `json:"scheduledDate" validate:"required"`
	ScheduledTime  string    `json:"scheduledTime" validate:"required"`
	Address        string    `json:"address"`
	Location       *GeoPoint `json:"location,omitempty"`
	IsNegotiable   bool      `json:"isNegotiable"`
	OfferedPrice   float64   `json:"offeredPrice,omitempty"`
	MediaTypes     []string  `json:"mediaTypes,omitempty"`
	MediaFiles     []string  `json:"mediaFiles,omitempty"` // Base64 encoded
	MediaFileNames []string  `json:"mediaFileNames,omitempty"`
}

// BookingEditRequest model for editing descriptive fields. Only honored
// before the booking is admin approved.
type BookingEditRequest struct {
	Description   string     `json:"description,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	ScheduledTime string     `json:"scheduledTime,omitempty"`
	Address       string     `json:"address,omitempty"`
	Location      *GeoPoint  `json:"location,omitempty"`
}

// TransitionRequest model carries the per-event inputs of a status change
type TransitionRequest struct {
	Amount     float64 `json:"amount,omitempty"`
	Note       string  `json:"note,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	Refund     float64 `json:"refund,omitempty"`

	// Set by the payment layer, never bound from client JSON.
	PaymentMethod string `json:"-"`
	PaymentRef    string `json:"-"`
}

// ChargeRequest model for proposing an additional charge
type ChargeRequest struct {
	Reason string  `json:"reason" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// ChargeReviewRequest model for the client's approve/reject decision
type ChargeReviewRequest struct {
	Approve bool `json:"approve"`
}

// BookingResponse model
type BookingResponse struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Data    *Booking `json:"data,omitempty"`
}

// BookingsResponse model for multiple bookings
type BookingsResponse struct {
	Status  int       `json:"status"`
	Message string    `json:"message"`
	Data    []Booking `json:"data,omitempty"`
}

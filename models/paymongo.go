package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PayMongoSourceRequest is the body for creating a gcash/maya source.
type PayMongoSourceRequest struct {
	Data PayMongoSourceData `json:"data"`
}

// PayMongoSourceData wraps the source attributes per the gateway's envelope.
type PayMongoSourceData struct {
	Attributes PayMongoSourceAttributes `json:"attributes"`
}

// PayMongoSourceAttributes describes the payment to collect. Amount is in
// centavos, so PHP 1050.00 is sent as 105000.
type PayMongoSourceAttributes struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Type     string            `json:"type"` // "gcash" or "paymaya"
	Redirect PayMongoRedirect  `json:"redirect"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PayMongoRedirect holds the post-checkout redirect URLs.
type PayMongoRedirect struct {
	Success string `json:"success"`
	Failed  string `json:"failed"`
}

// PayMongoSourceResponse is the gateway's reply to a source create or fetch.
type PayMongoSourceResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Type     string `json:"type"`
			Status   string `json:"status"` // pending, chargeable, paid, cancelled, expired
			Redirect struct {
				CheckoutURL string `json:"checkout_url"`
				Success     string `json:"success"`
				Failed      string `json:"failed"`
			} `json:"redirect"`
			Metadata map[string]string `json:"metadata"`
		} `json:"attributes"`
	} `json:"data"`
}

// PayMongoErrorResponse is the gateway's error envelope.
type PayMongoErrorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// PayMongoWebhookEvent is the payload delivered to the webhook endpoint.
type PayMongoWebhookEvent struct {
	Data struct {
		Attributes struct {
			Type string `json:"type"` // e.g. "source.chargeable", "payment.paid"
			Data struct {
				ID         string `json:"id"`
				Attributes struct {
					Status   string            `json:"status"`
					Amount   int64             `json:"amount"`
					Metadata map[string]string `json:"metadata"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// CheckoutData is what the API returns to the client after initiating an
// e-wallet payment: the URL to open and a QR code of it as base64 PNG.
type CheckoutData struct {
	SourceID    string  `json:"sourceId"`
	CheckoutURL string  `json:"checkoutUrl"`
	QRCode      string  `json:"qrCode,omitempty"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// Transaction records a completed payment against a booking.
type Transaction struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID primitive.ObjectID `json:"bookingId" bson:"bookingId"`
	ClientID  primitive.ObjectID `json:"clientId" bson:"clientId"`
	Amount    float64            `json:"amount" bson:"amount"`
	Method    string             `json:"method" bson:"method"`
	Ref       string             `json:"ref,omitempty" bson:"ref,omitempty"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

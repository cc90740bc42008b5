package lifecycle

import "go.mongodb.org/mongo-driver/bson/primitive"

// Notification kinds emitted by transitions. These are the wire values the
// mobile clients switch on.
const (
	NotifyBookingApproved   = "booking_approved"
	NotifyBookingRejected   = "booking_rejected"
	NotifyBookingCancelled  = "booking_cancelled"
	NotifyBookingAccepted   = "booking_accepted"
	NotifyBookingDeclined   = "booking_declined"
	NotifyNewOffer          = "new_offer"
	NotifyCounterOffer      = "counter_offer"
	NotifyOfferAccepted     = "offer_accepted"
	NotifyJobStarted        = "job_started"
	NotifyJobMarkedComplete = "job_marked_complete"
	NotifyCompletionOK      = "completion_confirmed"
	NotifyPaymentReceived   = "payment_received"
	NotifyBookingCompleted  = "booking_completed"
	NotifyReviewPrompt      = "review_prompt"
	NotifyDisputeOpened     = "dispute_opened"
	NotifyDisputeResolved   = "dispute_resolved"
	NotifyRefundIssued      = "refund_issued"
	NotifyChargeProposed    = "charge_proposed"
	NotifyChargeReviewed    = "charge_reviewed"
)

// Effect is a notification request a transition produced. The engine never
// sends anything itself; the dispatcher runs effects after the write has
// been confirmed, best effort.
type Effect struct {
	UserID primitive.ObjectID
	Kind   string
	Title  string
	Body   string
	Data   map[string]string
}

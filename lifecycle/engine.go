package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the document-store surface the engine needs. UpdateBooking must
// apply the update only while the booking's status still equals expected and
// return a *StaleStateError otherwise; that conditional write is what keeps
// racing actors from clobbering each other.
type Store interface {
	GetBooking(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id primitive.ObjectID, update bson.M, expected Status) (*models.Booking, error)
}

// Engine validates and applies booking transitions. It is side-effect free:
// every call reports the notifications to send as an Effect list and the
// caller dispatches them after the write is confirmed.
type Engine struct {
	store       Store
	maxAttempts int
	backoff     time.Duration
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, maxAttempts: 3, backoff: 100 * time.Millisecond}
}

// plan is a fully validated transition ready to be written.
type plan struct {
	to      Status
	set     bson.M
	push    bson.M
	effects []Effect
}

// Apply validates event against the latest committed booking state and
// writes the transition atomically. The returned booking is the
// post-transition document. Effects are only returned once persistence is
// confirmed; nothing is mutated on error.
func (e *Engine) Apply(ctx context.Context, bookingID primitive.ObjectID, event Event, actor Actor, req models.TransitionRequest) (*models.Booking, []Effect, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	if err := CanTransition(b, actor, event); err != nil {
		return nil, nil, err
	}

	p, err := buildPlan(b, actor, event, req)
	if err != nil {
		return nil, nil, err
	}

	update := bson.M{"$set": p.set}
	if len(p.push) > 0 {
		update["$push"] = p.push
	}

	updated, err := e.writeWithRetry(ctx, bookingID, update, Status(b.Status))
	if err != nil {
		return nil, nil, err
	}
	return updated, p.effects, nil
}

// writeWithRetry retries recoverable persistence failures with backoff.
// Stale-state conflicts are surfaced immediately: the caller must re-read.
func (e *Engine) writeWithRetry(ctx context.Context, id primitive.ObjectID, update bson.M, expected Status) (*models.Booking, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &PersistenceError{Op: "update booking", Err: ctx.Err()}
			case <-time.After(e.backoff * time.Duration(attempt)):
			}
		}
		updated, err := e.store.UpdateBooking(ctx, id, update, expected)
		if err == nil {
			return updated, nil
		}
		var stale *StaleStateError
		if errors.As(err, &stale) {
			return nil, err
		}
		var perm *PermissionError
		var val *ValidationError
		if errors.As(err, &perm) || errors.As(err, &val) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func buildPlan(b *models.Booking, actor Actor, event Event, req models.TransitionRequest) (*plan, error) {
	now := time.Now()
	p := &plan{set: bson.M{"updatedAt": now}, push: bson.M{}}

	to, ok := Next(Status(b.Status), event)
	if !ok {
		return nil, &PermissionError{Event: event, Role: actor.Role, Reason: "booking is " + b.Status}
	}
	p.to = to
	p.set["status"] = string(to)

	data := map[string]string{"bookingId": b.ID.Hex(), "event": string(event)}

	switch event {
	case EventAdminApprove:
		p.set["adminApproved"] = true
		p.effects = notifyBoth(b, NotifyBookingApproved,
			"Booking Approved",
			"Your booking has been approved and is now visible to the provider", data)

	case EventAdminReject:
		p.effects = []Effect{clientEffect(b, NotifyBookingRejected,
			"Booking Rejected", "Your booking request was rejected by the platform", data)}

	case EventCancel:
		if req.Reason == "" {
			return nil, &ValidationError{Reason: "cancellation reason is required"}
		}
		p.set["cancellationReason"] = req.Reason
		switch actor.Role {
		case RoleClient:
			p.effects = providerEffects(b, NotifyBookingCancelled,
				"Booking Cancelled", "The client cancelled the booking: "+req.Reason, data)
		default:
			p.effects = notifyBoth(b, NotifyBookingCancelled,
				"Booking Cancelled", "The booking was cancelled: "+req.Reason, data)
		}

	case EventAccept:
		// Price settles on acceptance for fixed-price jobs; negotiated jobs
		// already carry providerPrice from the accepted counter.
		base := b.BasePrice()
		if b.ProviderPrice == 0 {
			t, err := ComputeTotals(base, b.ApprovedCharges())
			if err != nil {
				return nil, err
			}
			p.set["providerPrice"] = base
			p.set["systemFee"] = t.SystemFee
			p.set["totalAmount"] = t.TotalAmount
		}
		p.effects = []Effect{clientEffect(b, NotifyBookingAccepted,
			"Booking Accepted", "Your provider accepted the booking", data)}

	case EventDecline:
		p.effects = []Effect{clientEffect(b, NotifyBookingDeclined,
			"Booking Declined", "The provider declined your booking", data)}

	case EventOffer:
		if err := validAmount(req.Amount); err != nil {
			return nil, err
		}
		t, err := ComputeTotals(req.Amount, b.ApprovedCharges())
		if err != nil {
			return nil, err
		}
		p.set["offeredPrice"] = req.Amount
		p.set["systemFee"] = t.SystemFee
		p.set["totalAmount"] = t.TotalAmount
		p.push["negotiationHistory"] = negotiationEntry("offer", req.Amount, req.Note, "client", actor.ID, now)
		p.effects = providerEffects(b, NotifyNewOffer,
			"New Offer", fmt.Sprintf("The client offered PHP %.2f", req.Amount), data)

	case EventCounter:
		if err := validAmount(req.Amount); err != nil {
			return nil, err
		}
		p.set["counterOfferPrice"] = req.Amount
		p.push["negotiationHistory"] = negotiationEntry("counter", req.Amount, req.Note, "provider", actor.ID, now)
		p.effects = []Effect{clientEffect(b, NotifyCounterOffer,
			"Counter Offer", fmt.Sprintf("The provider countered with PHP %.2f", req.Amount), data)}

	case EventAcceptCounter:
		if b.CounterOfferPrice <= 0 {
			return nil, &ValidationError{Reason: "no counter offer to accept"}
		}
		t, err := ComputeTotals(b.CounterOfferPrice, b.ApprovedCharges())
		if err != nil {
			return nil, err
		}
		p.set["providerPrice"] = b.CounterOfferPrice
		p.set["systemFee"] = t.SystemFee
		p.set["totalAmount"] = t.TotalAmount
		p.push["negotiationHistory"] = negotiationEntry("accept", b.CounterOfferPrice, req.Note, "client", actor.ID, now)
		p.effects = providerEffects(b, NotifyOfferAccepted,
			"Offer Accepted", fmt.Sprintf("The client accepted your counter of PHP %.2f", b.CounterOfferPrice), data)

	case EventStart:
		p.effects = []Effect{clientEffect(b, NotifyJobStarted,
			"Job Started", "Your provider has started the job", data)}

	case EventMarkComplete:
		p.effects = []Effect{clientEffect(b, NotifyJobMarkedComplete,
			"Job Finished", "The provider marked the job as complete. Please confirm.", data)}

	case EventConfirmCompletion:
		p.effects = providerEffects(b, NotifyCompletionOK,
			"Completion Confirmed", "The client confirmed completion. Awaiting payment.", data)

	case EventPayCash:
		if b.TotalAmount <= 0 {
			return nil, &ValidationError{Reason: "booking has no payable amount"}
		}
		p.set["paymentMethod"] = "cash"
		p.effects = providerEffects(b, NotifyPaymentReceived,
			"Payment Received", fmt.Sprintf("Cash payment of PHP %.2f recorded", b.TotalAmount), data)

	case EventPaymentConfirmed:
		p.set["paymentMethod"] = req.PaymentMethod
		p.set["paymentRef"] = req.PaymentRef
		p.effects = notifyBoth(b, NotifyPaymentReceived,
			"Payment Received", fmt.Sprintf("E-wallet payment of PHP %.2f confirmed", b.TotalAmount), data)

	case EventConfirmReceipt:
		p.set["completedAt"] = now
		p.effects = []Effect{clientEffect(b, NotifyBookingCompleted,
			"Booking Completed", "The provider confirmed receipt. Booking is complete.", data),
			clientEffect(b, NotifyReviewPrompt,
				"Rate Your Provider", "How was the service? Leave a review.", data)}

	case EventDispute:
		if req.Reason == "" {
			return nil, &ValidationError{Reason: "dispute reason is required"}
		}
		p.set["disputeReason"] = req.Reason
		p.set["disputedFrom"] = b.Status
		if actor.Role == RoleClient {
			p.effects = providerEffects(b, NotifyDisputeOpened,
				"Dispute Opened", "The client opened a dispute: "+req.Reason, data)
		} else {
			p.effects = []Effect{clientEffect(b, NotifyDisputeOpened,
				"Dispute Opened", "The provider opened a dispute: "+req.Reason, data)}
		}

	case EventResolveDispute:
		if req.Resolution == "" {
			return nil, &ValidationError{Reason: "dispute resolution is required"}
		}
		p.set["disputeResolution"] = req.Resolution
		p.set["completedAt"] = now
		if req.Refund > 0 {
			if err := validAmount(req.Refund); err != nil {
				return nil, err
			}
			p.set["refunded"] = true
			p.set["refundAmount"] = req.Refund
		}
		p.effects = notifyBoth(b, NotifyDisputeResolved,
			"Dispute Resolved", "An admin resolved the dispute: "+req.Resolution, data)

	case EventRefund:
		if err := validAmount(req.Refund); err != nil {
			return nil, err
		}
		p.set["refunded"] = true
		p.set["refundAmount"] = req.Refund
		p.effects = []Effect{clientEffect(b, NotifyRefundIssued,
			"Refund Issued", fmt.Sprintf("A refund of PHP %.2f was issued for your cancelled booking", req.Refund), data)}

	default:
		return nil, &ValidationError{Reason: "unknown event " + string(event)}
	}

	return p, nil
}

func validAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Reason: "amount is not a number"}
	}
	if v <= 0 {
		return &ValidationError{Reason: fmt.Sprintf("amount must be positive, got %.2f", v)}
	}
	return nil
}

func negotiationEntry(entryType string, amount float64, note, by string, userID primitive.ObjectID, at time.Time) models.NegotiationEntry {
	return models.NegotiationEntry{
		ID:        uuid.NewString(),
		Type:      entryType,
		Amount:    amount,
		Note:      note,
		By:        by,
		ByUserID:  userID,
		CreatedAt: at,
	}
}

func clientEffect(b *models.Booking, kind, title, body string, data map[string]string) Effect {
	return Effect{UserID: b.ClientID, Kind: kind, Title: title, Body: body, Data: data}
}

func providerEffects(b *models.Booking, kind, title, body string, data map[string]string) []Effect {
	if b.ProviderID == nil {
		return nil
	}
	return []Effect{{UserID: *b.ProviderID, Kind: kind, Title: title, Body: body, Data: data}}
}

func notifyBoth(b *models.Booking, kind, title, body string, data map[string]string) []Effect {
	effects := []Effect{clientEffect(b, kind, title, body, data)}
	effects = append(effects, providerEffects(b, kind, title, body, data)...)
	return effects
}

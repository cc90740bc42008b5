package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Charge statuses
const (
	ChargePending  = "pending"
	ChargeApproved = "approved"
	ChargeRejected = "rejected"
)

// ProposeCharge lets the assigned provider add a surcharge mid-job. The
// charge starts pending and only enters totalAmount once the client
// approves it.
func (e *Engine) ProposeCharge(ctx context.Context, bookingID primitive.ObjectID, actor Actor, reason string, amount float64) (*models.Booking, []Effect, error) {
	if reason == "" {
		return nil, nil, &ValidationError{Reason: "charge reason is required"}
	}
	if err := validAmount(amount); err != nil {
		return nil, nil, err
	}

	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != RoleProvider || b.ProviderID == nil || actor.ID != *b.ProviderID {
		return nil, nil, &PermissionError{Event: "propose_charge", Role: actor.Role, Reason: "only the assigned provider may propose charges"}
	}
	if !actor.ProviderApproved {
		return nil, nil, &PermissionError{Event: "propose_charge", Role: actor.Role, Reason: "provider account is not approved"}
	}
	if !Status(b.Status).IsActive() {
		return nil, nil, &PermissionError{Event: "propose_charge", Role: actor.Role, Reason: "booking is " + b.Status + ", charges need an active job"}
	}

	now := time.Now()
	charge := models.AdditionalCharge{
		ID:        uuid.NewString(),
		Reason:    reason,
		Amount:    amount,
		Status:    ChargePending,
		CreatedAt: now,
	}
	update := bson.M{
		"$set":  bson.M{"updatedAt": now},
		"$push": bson.M{"additionalCharges": charge},
	}

	updated, err := e.writeWithRetry(ctx, bookingID, update, Status(b.Status))
	if err != nil {
		return nil, nil, err
	}

	effects := []Effect{clientEffect(b, NotifyChargeProposed,
		"Additional Charge Proposed",
		fmt.Sprintf("Your provider proposed an extra charge of PHP %.2f: %s", amount, reason),
		map[string]string{"bookingId": b.ID.Hex(), "chargeId": charge.ID})}
	return updated, effects, nil
}

// ReviewCharge records the client's approve/reject decision on a pending
// charge and recomputes totalAmount so it always equals base + fee + the
// approved extras.
func (e *Engine) ReviewCharge(ctx context.Context, bookingID primitive.ObjectID, actor Actor, chargeID string, approve bool) (*models.Booking, []Effect, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != RoleClient || actor.ID != b.ClientID {
		return nil, nil, &PermissionError{Event: "review_charge", Role: actor.Role, Reason: "only the booking's client may review charges"}
	}
	if Status(b.Status).IsTerminal() {
		return nil, nil, &PermissionError{Event: "review_charge", Role: actor.Role, Reason: "booking is " + b.Status}
	}

	now := time.Now()
	found := false
	charges := make([]models.AdditionalCharge, len(b.AdditionalCharges))
	copy(charges, b.AdditionalCharges)
	var reviewed models.AdditionalCharge
	for i := range charges {
		if charges[i].ID != chargeID {
			continue
		}
		if charges[i].Status != ChargePending {
			return nil, nil, &ValidationError{Reason: "charge was already reviewed"}
		}
		if approve {
			charges[i].Status = ChargeApproved
		} else {
			charges[i].Status = ChargeRejected
		}
		charges[i].ReviewedAt = &now
		reviewed = charges[i]
		found = true
		break
	}
	if !found {
		return nil, nil, &ValidationError{Reason: "charge not found"}
	}

	set := bson.M{"additionalCharges": charges, "updatedAt": now}
	base := b.BasePrice()
	if base > 0 {
		approved := approvedOf(charges)
		t, err := ComputeTotals(base, approved)
		if err != nil {
			return nil, nil, err
		}
		set["systemFee"] = t.SystemFee
		set["totalAmount"] = t.TotalAmount
	}

	updated, err := e.writeWithRetry(ctx, bookingID, bson.M{"$set": set}, Status(b.Status))
	if err != nil {
		return nil, nil, err
	}

	verdict := "rejected"
	if approve {
		verdict = "approved"
	}
	effects := providerEffects(b, NotifyChargeReviewed,
		"Charge "+verdict,
		fmt.Sprintf("The client %s your extra charge of PHP %.2f", verdict, reviewed.Amount),
		map[string]string{"bookingId": b.ID.Hex(), "chargeId": chargeID, "verdict": verdict})
	return updated, effects, nil
}

func approvedOf(charges []models.AdditionalCharge) []models.AdditionalCharge {
	var approved []models.AdditionalCharge
	for _, c := range charges {
		if c.Status == ChargeApproved {
			approved = append(approved, c)
		}
	}
	return approved
}

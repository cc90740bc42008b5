package lifecycle

import (
	"testing"

	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testBooking(status Status, approved bool) *models.Booking {
	clientID := primitive.NewObjectID()
	providerID := primitive.NewObjectID()
	return &models.Booking{
		ID:            primitive.NewObjectID(),
		ClientID:      clientID,
		ProviderID:    &providerID,
		Status:        string(status),
		AdminApproved: approved,
		IsNegotiable:  true,
	}
}

func clientOf(b *models.Booking) Actor {
	return Actor{ID: b.ClientID, Role: RoleClient}
}

func providerOf(b *models.Booking) Actor {
	return Actor{ID: *b.ProviderID, Role: RoleProvider, ProviderApproved: true}
}

func TestCanTransition_UnapprovedProviderRejected(t *testing.T) {
	b := testBooking(StatusPending, true)
	actor := Actor{ID: *b.ProviderID, Role: RoleProvider, ProviderApproved: false}

	err := CanTransition(b, actor, EventAccept)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "not approved")
}

func TestCanTransition_StrangerCannotActOnBooking(t *testing.T) {
	b := testBooking(StatusPending, true)

	err := CanTransition(b, Actor{ID: primitive.NewObjectID(), Role: RoleClient}, EventCancel)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)

	err = CanTransition(b, Actor{ID: primitive.NewObjectID(), Role: RoleProvider, ProviderApproved: true}, EventAccept)
	assert.ErrorAs(t, err, &perr)
}

func TestCanTransition_AdminApprovalGate(t *testing.T) {
	b := testBooking(StatusPending, false)

	// Provider cannot see or act on an unapproved booking.
	err := CanTransition(b, providerOf(b), EventAccept)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "awaiting admin approval")

	// Admin approval is allowed exactly once.
	assert.NoError(t, CanTransition(b, Actor{Role: RoleAdmin}, EventAdminApprove))
	b.AdminApproved = true
	err = CanTransition(b, Actor{Role: RoleAdmin}, EventAdminApprove)
	assert.ErrorAs(t, err, &perr)
}

func TestCanTransition_ClientCancelWindow(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPendingNegotiation} {
		b := testBooking(s, true)
		assert.NoError(t, CanTransition(b, clientOf(b), EventCancel), "client cancel from %s", s)
	}
	for _, s := range []Status{StatusAccepted, StatusInProgress, StatusPendingPayment} {
		b := testBooking(s, true)
		err := CanTransition(b, clientOf(b), EventCancel)
		var perr *PermissionError
		assert.ErrorAs(t, err, &perr, "client cancel from %s must fail", s)
		// Admin still can.
		assert.NoError(t, CanTransition(b, Actor{Role: RoleAdmin}, EventCancel))
	}
}

func TestCanTransition_CounterRequiresNegotiable(t *testing.T) {
	b := testBooking(StatusPendingNegotiation, true)
	b.IsNegotiable = false
	err := CanTransition(b, providerOf(b), EventCounter)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "not negotiable")
}

func TestCanTransition_RolesAreExclusive(t *testing.T) {
	b := testBooking(StatusPending, true)

	// Client cannot accept their own booking.
	err := CanTransition(b, clientOf(b), EventAccept)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)

	// Provider cannot approve.
	b2 := testBooking(StatusPending, false)
	err = CanTransition(b2, providerOf(b2), EventAdminApprove)
	assert.ErrorAs(t, err, &perr)

	// Only the system path confirms e-wallet payments.
	b3 := testBooking(StatusPendingPayment, true)
	err = CanTransition(b3, clientOf(b3), EventPaymentConfirmed)
	assert.ErrorAs(t, err, &perr)
	assert.NoError(t, CanTransition(b3, SystemActor, EventPaymentConfirmed))
}

func TestCanTransition_RefundOnlyOnce(t *testing.T) {
	b := testBooking(StatusCancelled, true)
	assert.NoError(t, CanTransition(b, Actor{Role: RoleAdmin}, EventRefund))

	b.Refunded = true
	err := CanTransition(b, Actor{Role: RoleAdmin}, EventRefund)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "already refunded")
}

func TestCanTransition_DisputeByEitherParty(t *testing.T) {
	b := testBooking(StatusInProgress, true)
	assert.NoError(t, CanTransition(b, clientOf(b), EventDispute))
	assert.NoError(t, CanTransition(b, providerOf(b), EventDispute))

	// But not once already disputed.
	b.Status = string(StatusDisputed)
	var perr *PermissionError
	assert.ErrorAs(t, CanTransition(b, clientOf(b), EventDispute), &perr)
}

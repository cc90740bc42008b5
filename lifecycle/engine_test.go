package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore mimics the repository's conditional update against an in-memory
// booking document.
type fakeStore struct {
	booking     *models.Booking
	failUpdates int
	getCalls    int
	updateCalls int
}

func (f *fakeStore) GetBooking(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	f.getCalls++
	cp := *f.booking
	return &cp, nil
}

func (f *fakeStore) UpdateBooking(ctx context.Context, id primitive.ObjectID, update bson.M, expected Status) (*models.Booking, error) {
	f.updateCalls++
	if f.failUpdates > 0 {
		f.failUpdates--
		return nil, &PersistenceError{Op: "update booking", Err: errors.New("connection reset")}
	}
	if Status(f.booking.Status) != expected {
		return nil, &StaleStateError{Expected: expected, Actual: Status(f.booking.Status)}
	}
	applyUpdate(f.booking, update)
	cp := *f.booking
	return &cp, nil
}

func applyUpdate(b *models.Booking, update bson.M) {
	if set, ok := update["$set"].(bson.M); ok {
		for k, v := range set {
			switch k {
			case "status":
				b.Status = v.(string)
			case "adminApproved":
				b.AdminApproved = v.(bool)
			case "providerPrice":
				b.ProviderPrice = v.(float64)
			case "offeredPrice":
				b.OfferedPrice = v.(float64)
			case "counterOfferPrice":
				b.CounterOfferPrice = v.(float64)
			case "systemFee":
				b.SystemFee = v.(float64)
			case "totalAmount":
				b.TotalAmount = v.(float64)
			case "cancellationReason":
				b.CancellationReason = v.(string)
			case "disputeReason":
				b.DisputeReason = v.(string)
			case "disputedFrom":
				b.DisputedFrom = v.(string)
			case "disputeResolution":
				b.DisputeResolution = v.(string)
			case "refunded":
				b.Refunded = v.(bool)
			case "refundAmount":
				b.RefundAmount = v.(float64)
			case "paymentMethod":
				b.PaymentMethod = v.(string)
			case "paymentRef":
				b.PaymentRef = v.(string)
			case "additionalCharges":
				b.AdditionalCharges = v.([]models.AdditionalCharge)
			case "completedAt":
				t := v.(time.Time)
				b.CompletedAt = &t
			case "updatedAt":
				b.UpdatedAt = v.(time.Time)
			}
		}
	}
	if push, ok := update["$push"].(bson.M); ok {
		if entry, ok := push["negotiationHistory"].(models.NegotiationEntry); ok {
			b.NegotiationHistory = append(b.NegotiationHistory, entry)
		}
		if charge, ok := push["additionalCharges"].(models.AdditionalCharge); ok {
			b.AdditionalCharges = append(b.AdditionalCharges, charge)
		}
	}
}

func newEngineWith(b *models.Booking) (*Engine, *fakeStore) {
	store := &fakeStore{booking: b}
	e := NewEngine(store)
	e.backoff = time.Millisecond
	return e, store
}

func TestApply_AdminApprove(t *testing.T) {
	b := testBooking(StatusPending, false)
	e, store := newEngineWith(b)

	updated, effects, err := e.Apply(context.Background(), b.ID, EventAdminApprove, Actor{Role: RoleAdmin}, models.TransitionRequest{})
	require.NoError(t, err)
	assert.True(t, updated.AdminApproved)
	assert.Equal(t, string(StatusPending), updated.Status)
	assert.Len(t, effects, 2) // client and provider
	assert.Equal(t, 1, store.updateCalls)
}

func TestApply_AcceptFreezesPriceAndFee(t *testing.T) {
	b := testBooking(StatusPending, true)
	b.ProviderFixedPrice = 1000
	e, _ := newEngineWith(b)

	updated, effects, err := e.Apply(context.Background(), b.ID, EventAccept, providerOf(b), models.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(StatusAccepted), updated.Status)
	assert.Equal(t, 1000.0, updated.ProviderPrice)
	assert.Equal(t, 50.0, updated.SystemFee)
	assert.Equal(t, 1050.0, updated.TotalAmount)
	require.Len(t, effects, 1)
	assert.Equal(t, b.ClientID, effects[0].UserID)
	assert.Equal(t, NotifyBookingAccepted, effects[0].Kind)
}

func TestApply_NegotiationRound(t *testing.T) {
	// Scenario: client offers 800, provider counters 900, client accepts.
	b := testBooking(StatusPending, true)
	b.ProviderFixedPrice = 1000
	e, _ := newEngineWith(b)
	ctx := context.Background()

	updated, _, err := e.Apply(ctx, b.ID, EventOffer, clientOf(b), models.TransitionRequest{Amount: 800})
	require.NoError(t, err)
	assert.Equal(t, string(StatusPendingNegotiation), updated.Status)
	assert.Equal(t, 800.0, updated.OfferedPrice)
	assert.Equal(t, 40.0, updated.SystemFee)

	updated, _, err = e.Apply(ctx, b.ID, EventCounter, providerOf(b), models.TransitionRequest{Amount: 900})
	require.NoError(t, err)
	assert.Equal(t, string(StatusCounterOffer), updated.Status)
	assert.Equal(t, 900.0, updated.CounterOfferPrice)

	updated, effects, err := e.Apply(ctx, b.ID, EventAcceptCounter, clientOf(b), models.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(StatusPending), updated.Status)
	assert.Equal(t, 900.0, updated.ProviderPrice)
	assert.Equal(t, 45.0, updated.SystemFee)
	assert.Equal(t, 945.0, updated.TotalAmount)
	require.Len(t, effects, 1)
	assert.Equal(t, NotifyOfferAccepted, effects[0].Kind)

	// Audit trail keeps every round in order.
	require.Len(t, updated.NegotiationHistory, 3)
	assert.Equal(t, "offer", updated.NegotiationHistory[0].Type)
	assert.Equal(t, "counter", updated.NegotiationHistory[1].Type)
	assert.Equal(t, "accept", updated.NegotiationHistory[2].Type)
	assert.NotEmpty(t, updated.NegotiationHistory[0].ID)
}

func TestApply_EWalletPaymentFlow(t *testing.T) {
	// Webhook confirms payment, then provider confirms receipt.
	b := testBooking(StatusPendingPayment, true)
	b.ProviderPrice = 1000
	b.SystemFee = 50
	b.TotalAmount = 1050
	e, _ := newEngineWith(b)
	ctx := context.Background()

	updated, effects, err := e.Apply(ctx, b.ID, EventPaymentConfirmed, SystemActor,
		models.TransitionRequest{PaymentMethod: "gcash", PaymentRef: "src_abc123"})
	require.NoError(t, err)
	assert.Equal(t, string(StatusPaymentReceived), updated.Status)
	assert.Equal(t, "gcash", updated.PaymentMethod)
	assert.Equal(t, "src_abc123", updated.PaymentRef)
	assert.Len(t, effects, 2)

	updated, effects, err = e.Apply(ctx, b.ID, EventConfirmReceipt, providerOf(b), models.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(StatusCompleted), updated.Status)
	require.NotNil(t, updated.CompletedAt)
	// Completion also unlocks the review prompt for the client.
	kinds := []string{effects[0].Kind, effects[1].Kind}
	assert.Contains(t, kinds, NotifyBookingCompleted)
	assert.Contains(t, kinds, NotifyReviewPrompt)
}

func TestApply_CashPaymentRequiresAmount(t *testing.T) {
	b := testBooking(StatusPendingPayment, true)
	b.TotalAmount = 0
	e, store := newEngineWith(b)

	_, _, err := e.Apply(context.Background(), b.ID, EventPayCash, clientOf(b), models.TransitionRequest{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, store.updateCalls)
}

func TestApply_CancelRequiresReason(t *testing.T) {
	b := testBooking(StatusPending, true)
	e, store := newEngineWith(b)

	_, _, err := e.Apply(context.Background(), b.ID, EventCancel, clientOf(b), models.TransitionRequest{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, store.updateCalls)

	updated, _, err := e.Apply(context.Background(), b.ID, EventCancel, clientOf(b),
		models.TransitionRequest{Reason: "found someone closer"})
	require.NoError(t, err)
	assert.Equal(t, string(StatusCancelled), updated.Status)
	assert.Equal(t, "found someone closer", updated.CancellationReason)
}

func TestApply_StaleStateIsNotRetried(t *testing.T) {
	b := testBooking(StatusPending, true)
	b.ProviderFixedPrice = 500

	// Another actor wins the race between read and write: the guard sees
	// pending while the store already holds cancelled.
	newer := *b
	newer.Status = string(StatusCancelled)
	stale := &fakeStore{booking: &newer}
	e := NewEngine(&raceStore{read: b, fakeStore: stale})
	e.backoff = time.Millisecond

	_, _, err := e.Apply(context.Background(), b.ID, EventAccept, providerOf(b), models.TransitionRequest{})
	var serr *StaleStateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StatusPending, serr.Expected)
	assert.Equal(t, StatusCancelled, serr.Actual)
	assert.Equal(t, 1, stale.updateCalls, "stale conflicts must not be retried")
}

// raceStore serves a stale read but writes against the newer document.
type raceStore struct {
	read *models.Booking
	*fakeStore
}

func (r *raceStore) GetBooking(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	cp := *r.read
	return &cp, nil
}

func TestApply_RetriesTransientPersistenceFailures(t *testing.T) {
	b := testBooking(StatusPending, true)
	b.ProviderFixedPrice = 500
	e, store := newEngineWith(b)
	store.failUpdates = 2

	updated, _, err := e.Apply(context.Background(), b.ID, EventAccept, providerOf(b), models.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(StatusAccepted), updated.Status)
	assert.Equal(t, 3, store.updateCalls)
}

func TestApply_GivesUpAfterMaxAttempts(t *testing.T) {
	b := testBooking(StatusPending, false)
	e, store := newEngineWith(b)
	store.failUpdates = 10

	_, _, err := e.Apply(context.Background(), b.ID, EventAdminApprove, Actor{Role: RoleAdmin}, models.TransitionRequest{})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, store.updateCalls)
}

func TestApply_ReapplyingEventIsRejected(t *testing.T) {
	b := testBooking(StatusPending, true)
	b.ProviderFixedPrice = 750
	e, _ := newEngineWith(b)
	ctx := context.Background()

	_, _, err := e.Apply(ctx, b.ID, EventAccept, providerOf(b), models.TransitionRequest{})
	require.NoError(t, err)

	// The same event again finds the booking out of its from-state.
	_, _, err = e.Apply(ctx, b.ID, EventAccept, providerOf(b), models.TransitionRequest{})
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
}

func TestProposeAndReviewCharge(t *testing.T) {
	b := testBooking(StatusInProgress, true)
	b.ProviderPrice = 1000
	b.SystemFee = 50
	b.TotalAmount = 1050
	e, _ := newEngineWith(b)
	ctx := context.Background()

	updated, effects, err := e.ProposeCharge(ctx, b.ID, providerOf(b), "extra pipe fittings", 200)
	require.NoError(t, err)
	require.Len(t, updated.AdditionalCharges, 1)
	charge := updated.AdditionalCharges[0]
	assert.Equal(t, ChargePending, charge.Status)
	assert.True(t, updated.HasAdditionalPending())
	// Pending charges don't touch the total yet.
	assert.Equal(t, 1050.0, updated.TotalAmount)
	require.Len(t, effects, 1)
	assert.Equal(t, NotifyChargeProposed, effects[0].Kind)

	updated, effects, err = e.ReviewCharge(ctx, b.ID, clientOf(b), charge.ID, true)
	require.NoError(t, err)
	assert.Equal(t, ChargeApproved, updated.AdditionalCharges[0].Status)
	assert.False(t, updated.HasAdditionalPending())
	assert.Equal(t, 1250.0, updated.TotalAmount)
	assert.Equal(t, 50.0, updated.SystemFee, "fee stays on base price only")
	require.Len(t, effects, 1)
	assert.Equal(t, NotifyChargeReviewed, effects[0].Kind)

	// A reviewed charge cannot be reviewed again.
	_, _, err = e.ReviewCharge(ctx, b.ID, clientOf(b), charge.ID, false)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReviewCharge_RejectKeepsTotal(t *testing.T) {
	b := testBooking(StatusInProgress, true)
	b.ProviderPrice = 1000
	b.SystemFee = 50
	b.TotalAmount = 1050
	e, _ := newEngineWith(b)
	ctx := context.Background()

	updated, _, err := e.ProposeCharge(ctx, b.ID, providerOf(b), "parking", 150)
	require.NoError(t, err)

	updated, _, err = e.ReviewCharge(ctx, b.ID, clientOf(b), updated.AdditionalCharges[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, ChargeRejected, updated.AdditionalCharges[0].Status)
	assert.Equal(t, 1050.0, updated.TotalAmount)
}

func TestProposeCharge_NeedsActiveJob(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPendingPayment, StatusCompleted} {
		b := testBooking(s, true)
		e, _ := newEngineWith(b)
		_, _, err := e.ProposeCharge(context.Background(), b.ID, providerOf(b), "materials", 100)
		var perr *PermissionError
		assert.ErrorAs(t, err, &perr, "charge from %s must fail", s)
	}
}

func TestApply_DisputeAndResolution(t *testing.T) {
	b := testBooking(StatusInProgress, true)
	e, _ := newEngineWith(b)
	ctx := context.Background()

	updated, _, err := e.Apply(ctx, b.ID, EventDispute, clientOf(b), models.TransitionRequest{Reason: "work not as described"})
	require.NoError(t, err)
	assert.Equal(t, string(StatusDisputed), updated.Status)
	assert.Equal(t, string(StatusInProgress), updated.DisputedFrom)

	// Everything but admin resolution is frozen.
	_, _, err = e.Apply(ctx, b.ID, EventMarkComplete, providerOf(b), models.TransitionRequest{})
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)

	updated, effects, err := e.Apply(ctx, b.ID, EventResolveDispute, Actor{Role: RoleAdmin},
		models.TransitionRequest{Resolution: "partial refund agreed", Refund: 300})
	require.NoError(t, err)
	assert.Equal(t, string(StatusCompleted), updated.Status)
	assert.True(t, updated.Refunded)
	assert.Equal(t, 300.0, updated.RefundAmount)
	assert.Len(t, effects, 2)
}

func TestApply_RefundAfterCancellation(t *testing.T) {
	b := testBooking(StatusCancelled, true)
	e, _ := newEngineWith(b)

	updated, effects, err := e.Apply(context.Background(), b.ID, EventRefund, Actor{Role: RoleAdmin},
		models.TransitionRequest{Refund: 500})
	require.NoError(t, err)
	assert.Equal(t, string(StatusCancelled), updated.Status)
	assert.True(t, updated.Refunded)
	assert.Equal(t, 500.0, updated.RefundAmount)
	require.Len(t, effects, 1)
	assert.Equal(t, NotifyRefundIssued, effects[0].Kind)
}

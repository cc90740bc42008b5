package services

import (
	"context"
	"testing"
	"time"

	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// watcherStore keeps one booking in memory and applies status writes the way
// the repository's conditional update does.
type watcherStore struct {
	booking *models.Booking
}

func (s *watcherStore) GetBooking(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	cp := *s.booking
	return &cp, nil
}

func (s *watcherStore) UpdateBooking(ctx context.Context, id primitive.ObjectID, update bson.M, expected lifecycle.Status) (*models.Booking, error) {
	if lifecycle.Status(s.booking.Status) != expected {
		return nil, &lifecycle.StaleStateError{Expected: expected, Actual: lifecycle.Status(s.booking.Status)}
	}
	if set, ok := update["$set"].(bson.M); ok {
		if v, ok := set["status"].(string); ok {
			s.booking.Status = v
		}
		if v, ok := set["paymentMethod"].(string); ok {
			s.booking.PaymentMethod = v
		}
		if v, ok := set["paymentRef"].(string); ok {
			s.booking.PaymentRef = v
		}
	}
	cp := *s.booking
	return &cp, nil
}

type scriptedGateway struct {
	statuses []string
	calls    int
}

func (g *scriptedGateway) GetSourceStatus(sourceID string) (string, string, error) {
	status := g.statuses[g.calls]
	if g.calls < len(g.statuses)-1 {
		g.calls++
	}
	return status, "", nil
}

func newWatcherBooking() *models.Booking {
	providerID := primitive.NewObjectID()
	return &models.Booking{
		ID:          primitive.NewObjectID(),
		ClientID:    primitive.NewObjectID(),
		ProviderID:  &providerID,
		Status:        string(lifecycle.StatusPendingPayment),
		ProviderPrice: 500,
		TotalAmount:   525,
	}
}

func newTestWatcher(store *watcherStore, gateway SourceStatusGetter) *PaymentWatcher {
	w := NewPaymentWatcher(nil, gateway, lifecycle.NewEngine(store), nil)
	w.interval = time.Millisecond
	w.maxChecks = 5
	return w
}

func TestWatchConfirmsChargeableSource(t *testing.T) {
	store := &watcherStore{booking: newWatcherBooking()}
	gateway := &scriptedGateway{statuses: []string{"pending", "chargeable"}}

	w := newTestWatcher(store, gateway)
	w.Watch(store.booking.ID, "src_live", "gcash")

	assert.Equal(t, string(lifecycle.StatusPaymentReceived), store.booking.Status)
	assert.Equal(t, "gcash", store.booking.PaymentMethod)
	assert.Equal(t, "src_live", store.booking.PaymentRef)
}

func TestWatchStopsOnExpiredSource(t *testing.T) {
	store := &watcherStore{booking: newWatcherBooking()}
	gateway := &scriptedGateway{statuses: []string{"expired"}}

	w := newTestWatcher(store, gateway)
	w.Watch(store.booking.ID, "src_dead", "maya")

	assert.Equal(t, string(lifecycle.StatusPendingPayment), store.booking.Status)
}

func TestWatchToleratesWebhookWinningRace(t *testing.T) {
	booking := newWatcherBooking()
	// The webhook already moved the booking on; the watcher must leave it
	// alone instead of double-confirming.
	booking.Status = string(lifecycle.StatusPaymentReceived)
	store := &watcherStore{booking: booking}
	gateway := &scriptedGateway{statuses: []string{"paid"}}

	w := newTestWatcher(store, gateway)
	require.NotPanics(t, func() {
		w.Watch(booking.ID, "src_race", "gcash")
	})
	assert.Equal(t, string(lifecycle.StatusPaymentReceived), store.booking.Status)
}

func TestWatchGivesUpAfterMaxChecks(t *testing.T) {
	store := &watcherStore{booking: newWatcherBooking()}
	gateway := &scriptedGateway{statuses: []string{"pending"}}

	w := newTestWatcher(store, gateway)
	w.Watch(store.booking.ID, "src_slow", "gcash")

	assert.Equal(t, string(lifecycle.StatusPendingPayment), store.booking.Status)
}

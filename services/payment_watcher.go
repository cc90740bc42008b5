package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SourceStatusGetter is the slice of the payment gateway the watcher needs.
type SourceStatusGetter interface {
	GetSourceStatus(sourceID string) (string, string, error)
}

// PaymentWatcher polls a pending e-wallet source until it settles. It is a
// fallback for missed webhooks: the webhook normally confirms the payment
// first and the watcher's transition then fails as stale, which is fine.
type PaymentWatcher struct {
	db         *mongo.Client
	gateway    SourceStatusGetter
	engine     *lifecycle.Engine
	dispatcher *NotificationDispatcher
	interval   time.Duration
	maxChecks  int
}

func NewPaymentWatcher(db *mongo.Client, gateway SourceStatusGetter, engine *lifecycle.Engine, dispatcher *NotificationDispatcher) *PaymentWatcher {
	return &PaymentWatcher{
		db:         db,
		gateway:    gateway,
		engine:     engine,
		dispatcher: dispatcher,
		interval:   5 * time.Second,
		maxChecks:  12,
	}
}

// Watch polls the source in the background and confirms the booking payment
// when the source reaches a terminal status. Meant to be launched as a
// goroutine right after checkout is created.
func (w *PaymentWatcher) Watch(bookingID primitive.ObjectID, sourceID, walletType string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.maxChecks+1)*w.interval)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for check := 0; check < w.maxChecks; check++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, _, err := w.gateway.GetSourceStatus(sourceID)
		if err != nil {
			log.Printf("Payment watcher: failed to check source %s: %v", sourceID, err)
			continue
		}

		switch status {
		case "chargeable", "paid":
			w.confirm(ctx, bookingID, sourceID, walletType)
			return
		case "cancelled", "expired":
			log.Printf("Payment watcher: source %s ended as %s for booking %s", sourceID, status, bookingID.Hex())
			return
		}
	}
	log.Printf("Payment watcher: source %s still pending after %d checks, leaving to manual verification", sourceID, w.maxChecks)
}

func (w *PaymentWatcher) confirm(ctx context.Context, bookingID primitive.ObjectID, sourceID, walletType string) {
	booking, effects, err := w.engine.Apply(ctx, bookingID, lifecycle.EventPaymentConfirmed, lifecycle.SystemActor,
		models.TransitionRequest{PaymentMethod: walletType, PaymentRef: sourceID})
	if err != nil {
		// The webhook beat us to it; nothing to do.
		var stale *lifecycle.StaleStateError
		if errors.As(err, &stale) {
			return
		}
		log.Printf("Payment watcher: failed to confirm payment for booking %s: %v", bookingID.Hex(), err)
		return
	}
	log.Printf("Payment watcher: confirmed %s payment for booking %s", walletType, bookingID.Hex())
	if w.db != nil {
		RecordPayment(w.db, booking, walletType, sourceID)
	}
	if w.dispatcher != nil {
		w.dispatcher.Dispatch(ctx, booking, effects)
	}
}

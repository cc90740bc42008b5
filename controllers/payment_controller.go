package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"log"
	"net/http"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/services"
	"github.com/serbisyo/serbisyo_backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// PaymentController handles e-wallet checkout and gateway callbacks
type PaymentController struct {
	db         *mongo.Client
	engine     *lifecycle.Engine
	bookings   *repositories.BookingRepository
	users      *repositories.UserRepository
	gateway    *services.PayMongoService
	watcher    *services.PaymentWatcher
	dispatcher *services.NotificationDispatcher
}

// NewPaymentController creates a new payment controller
func NewPaymentController(db *mongo.Client, engine *lifecycle.Engine, gateway *services.PayMongoService, watcher *services.PaymentWatcher, dispatcher *services.NotificationDispatcher) *PaymentController {
	return &PaymentController{
		db:         db,
		engine:     engine,
		bookings:   repositories.NewBookingRepository(db),
		users:      repositories.NewUserRepository(db),
		gateway:    gateway,
		watcher:    watcher,
		dispatcher: dispatcher,
	}
}

// CheckoutRequest is the body for initiating an e-wallet payment
type CheckoutRequest struct {
	WalletType string `json:"walletType"` // "gcash" or "maya"
}

// InitiateCheckout creates a payment source for a booking awaiting payment
// and hands back the checkout URL plus a QR code of it.
func (c *PaymentController) InitiateCheckout(ctx echo.Context) error {
	user, err := utils.GetUserFromToken(ctx, c.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}

	var request CheckoutRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if request.WalletType != "gcash" && request.WalletType != "maya" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "walletType must be 'gcash' or 'maya'",
		})
	}

	booking, err := c.bookings.GetBooking(ctx.Request().Context(), bookingID)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Booking not found",
		})
	}
	if booking.ClientID != user.ID {
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only the booking's client can pay for it",
		})
	}
	if booking.Status != string(lifecycle.StatusPendingPayment) {
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Booking is not awaiting payment",
		})
	}
	if booking.TotalAmount <= 0 {
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Booking has no amount due",
		})
	}

	sourceID, checkoutURL, err := c.gateway.CreateSource(booking.TotalAmount, request.WalletType, bookingID.Hex())
	if err != nil {
		log.Printf("Failed to create payment source for booking %s: %v", bookingID.Hex(), err)
		return ctx.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: "Payment gateway is unavailable, please try again",
		})
	}

	qrCode, err := generateCheckoutQR(checkoutURL)
	if err != nil {
		log.Printf("Failed to generate checkout QR for booking %s: %v", bookingID.Hex(), err)
		qrCode = ""
	}

	// Poll the source in the background in case the webhook never arrives
	go c.watcher.Watch(bookingID, sourceID, request.WalletType)

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Checkout created",
		Data: models.CheckoutData{
			SourceID:    sourceID,
			CheckoutURL: checkoutURL,
			QRCode:      qrCode,
			Amount:      booking.TotalAmount,
			Currency:    "PHP",
		},
	})
}

// generateCheckoutQR renders the checkout URL as a base64 PNG data URI
func generateCheckoutQR(content string) (string, error) {
	qrCode, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %v", err)
	}
	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return "", fmt.Errorf("failed to scale QR code: %v", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return "", fmt.Errorf("failed to render QR code: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Webhook receives gateway events. The endpoint is unauthenticated, so it
// trusts nothing in the payload beyond identifiers and re-checks the
// booking through the engine.
func (c *PaymentController) Webhook(ctx echo.Context) error {
	var event models.PayMongoWebhookEvent
	if err := ctx.Bind(&event); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid payload",
		})
	}

	eventType := event.Data.Attributes.Type
	source := event.Data.Attributes.Data
	log.Printf("Payment webhook received: %s source=%s status=%s", eventType, source.ID, source.Attributes.Status)

	if eventType != "source.chargeable" {
		// Acknowledge everything else so the gateway stops retrying
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Event ignored",
		})
	}

	bookingHex := source.Attributes.Metadata["bookingId"]
	bookingID, err := primitive.ObjectIDFromHex(bookingHex)
	if err != nil {
		log.Printf("Webhook source %s carries no usable booking reference: %q", source.ID, bookingHex)
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Event ignored",
		})
	}

	method := "gcash"
	if t := source.Attributes.Metadata["walletType"]; t != "" {
		method = t
	}

	booking, effects, err := c.engine.Apply(ctx.Request().Context(), bookingID, lifecycle.EventPaymentConfirmed,
		lifecycle.SystemActor, models.TransitionRequest{PaymentMethod: method, PaymentRef: source.ID})
	if err != nil {
		if _, stale := err.(*lifecycle.StaleStateError); stale {
			// Watcher or an earlier delivery already confirmed this payment
			return ctx.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Already processed",
			})
		}
		log.Printf("Webhook failed to confirm payment for booking %s: %v", bookingID.Hex(), err)
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Event acknowledged",
		})
	}

	services.RecordPayment(c.db, booking, method, source.ID)
	go c.dispatcher.Dispatch(context.Background(), booking, effects)

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment confirmed",
	})
}

// VerifyPayment lets the client poll a source manually, e.g. after the
// redirect back from the wallet app.
func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	user, err := utils.GetUserFromToken(ctx, c.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	bookingID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid booking ID",
		})
	}
	sourceID := ctx.QueryParam("sourceId")
	if sourceID == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "sourceId is required",
		})
	}

	booking, err := c.bookings.GetBooking(ctx.Request().Context(), bookingID)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Booking not found",
		})
	}
	if booking.ClientID != user.ID {
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only the booking's client can verify its payment",
		})
	}

	// Payment already landed through the webhook or the watcher
	if booking.Status != string(lifecycle.StatusPendingPayment) {
		return ctx.JSON(http.StatusOK, models.BookingResponse{
			Status:  http.StatusOK,
			Message: "Payment already recorded",
			Data:    booking,
		})
	}

	status, _, err := c.gateway.GetSourceStatus(sourceID)
	if err != nil {
		log.Printf("Failed to check source %s: %v", sourceID, err)
		return ctx.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: "Payment gateway is unavailable, please try again",
		})
	}

	switch status {
	case "chargeable", "paid":
		method := booking.PaymentMethod
		if method == "" {
			method = "gcash"
		}
		updated, effects, err := c.engine.Apply(ctx.Request().Context(), bookingID, lifecycle.EventPaymentConfirmed,
			lifecycle.SystemActor, models.TransitionRequest{PaymentMethod: method, PaymentRef: sourceID})
		if err != nil {
			if _, stale := err.(*lifecycle.StaleStateError); stale {
				fresh, ferr := c.bookings.GetBooking(ctx.Request().Context(), bookingID)
				if ferr == nil {
					booking = fresh
				}
				return ctx.JSON(http.StatusOK, models.BookingResponse{
					Status:  http.StatusOK,
					Message: "Payment already recorded",
					Data:    booking,
				})
			}
			return writeLifecycleError(ctx, err)
		}
		services.RecordPayment(c.db, updated, method, sourceID)
		go c.dispatcher.Dispatch(context.Background(), updated, effects)
		return ctx.JSON(http.StatusOK, models.BookingResponse{
			Status:  http.StatusOK,
			Message: "Payment confirmed",
			Data:    updated,
		})
	case "cancelled", "expired":
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: fmt.Sprintf("Payment %s, please start a new checkout", status),
		})
	default:
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Payment still pending",
		})
	}
}

package services

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/utils"
	"github.com/serbisyo/serbisyo_backend/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/gomail.v2"
)

// Money-moving events are worth an email; everything else stays in-app/push.
var emailKinds = map[string]bool{
	lifecycle.NotifyPaymentReceived:  true,
	lifecycle.NotifyBookingCompleted: true,
	lifecycle.NotifyRefundIssued:     true,
	lifecycle.NotifyDisputeResolved:  true,
}

// SMS costs per message, so only payment confirmations go out over it.
var smsKinds = map[string]bool{
	lifecycle.NotifyPaymentReceived: true,
	lifecycle.NotifyRefundIssued:    true,
}

// NotificationDispatcher fans a transition's effects out to the in-app feed,
// FCM push, email, SMS and live websocket clients. Delivery is best-effort:
// failures are logged, never propagated, because the transition is already
// committed.
type NotificationDispatcher struct {
	db  *mongo.Client
	hub *websocket.Hub
}

func NewNotificationDispatcher(db *mongo.Client, hub *websocket.Hub) *NotificationDispatcher {
	return &NotificationDispatcher{db: db, hub: hub}
}

// Dispatch delivers every effect of a committed transition. Runs the
// channels inline; callers that don't want to block launch it as a goroutine.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, booking *models.Booking, effects []lifecycle.Effect) {
	for _, eff := range effects {
		if err := d.saveInApp(ctx, eff); err != nil {
			log.Printf("Failed to save notification for user %s: %v", eff.UserID.Hex(), err)
		}

		user, err := d.loadUser(ctx, eff.UserID)
		if err != nil {
			log.Printf("Failed to load user %s for notification delivery: %v", eff.UserID.Hex(), err)
			continue
		}

		if err := d.sendFCM(ctx, user, eff); err != nil {
			log.Printf("Failed to send push notification to user %s: %v", eff.UserID.Hex(), err)
		}
		if emailKinds[eff.Kind] && user.Email != "" {
			if err := d.sendEmail(user.Email, eff); err != nil {
				log.Printf("Failed to email user %s: %v", eff.UserID.Hex(), err)
			}
		}
		if smsKinds[eff.Kind] && user.Phone != "" {
			if err := utils.NewSMSService().Send(user.Phone, eff.Body); err != nil {
				log.Printf("Failed to SMS user %s: %v", eff.UserID.Hex(), err)
			}
		}
		d.pushWebsocket(booking, eff)
	}
}

func (d *NotificationDispatcher) loadUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	collection := config.GetCollection(d.db, "users")
	var user models.User
	if err := collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *NotificationDispatcher) saveInApp(ctx context.Context, eff lifecycle.Effect) error {
	collection := config.GetCollection(d.db, "notifications")
	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    eff.UserID,
		Title:     eff.Title,
		Message:   eff.Body,
		Type:      eff.Kind,
		Data:      eff.Data,
		IsRead:    false,
		CreatedAt: time.Now(),
	}
	_, err := collection.InsertOne(ctx, notification)
	return err
}

func (d *NotificationDispatcher) sendFCM(ctx context.Context, user *models.User, eff lifecycle.Effect) error {
	if user.FCMToken == "" {
		// Not every client registers for push; skip quietly.
		return nil
	}
	if config.FirebaseApp == nil {
		log.Printf("Firebase app is not initialized, skipping push")
		return nil
	}

	client, err := config.FirebaseApp.Messaging(ctx)
	if err != nil {
		return err
	}

	data := map[string]string{
		"type":      eff.Kind,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range eff.Data {
		data[k] = v
	}

	fcmMessage := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: eff.Title,
			Body:  eff.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "serbisyo_fcm_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: eff.Title,
						Body:  eff.Body,
					},
					Sound:    "default",
					Badge:    func() *int { v := 1; return &v }(),
					Category: "BOOKING_UPDATE",
				},
			},
		},
	}

	response, err := client.Send(ctx, fcmMessage)
	if err != nil {
		return err
	}
	log.Printf("Push notification sent to user %s: %s", eff.UserID.Hex(), response)
	return nil
}

func (d *NotificationDispatcher) sendEmail(to string, eff lifecycle.Effect) error {
	smtpHost := os.Getenv("SMTP_HOST")
	if smtpHost == "" {
		smtpHost = "mail.smtp2go.com"
	}
	smtpPort := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		smtpPort = p
	}
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASSWORD")
	fromEmail := os.Getenv("FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = smtpUser
	}
	if smtpUser == "" || smtpPass == "" {
		log.Printf("SMTP not configured, skipping email")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Serbisyo: "+eff.Title)
	m.SetBody("text/plain", eff.Body)

	return gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass).DialAndSend(m)
}

func (d *NotificationDispatcher) pushWebsocket(booking *models.Booking, eff lifecycle.Effect) {
	if d.hub == nil {
		return
	}
	// "user not connected" is the common case and not worth logging.
	if err := d.hub.NotifyBookingUpdate(eff.UserID, eff.Body, booking); err == nil {
		log.Printf("Websocket update delivered to user %s", eff.UserID.Hex())
	}
}

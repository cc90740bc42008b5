package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/middleware"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/gomail.v2"
)

// AdminController handles the admin dashboard endpoints
type AdminController struct {
	db       *mongo.Client
	bookings *repositories.BookingRepository
	users    *repositories.UserRepository
}

// OTPData stores a pending admin password-reset OTP
type OTPData struct {
	OTP       string
	ExpiresAt time.Time
}

// Reset OTPs live in memory; there is one admin mailbox and a 10 minute TTL
var otpStore = make(map[string]OTPData)

func NewAdminController(db *mongo.Client) *AdminController {
	return &AdminController{
		db:       db,
		bookings: repositories.NewBookingRepository(db),
		users:    repositories.NewUserRepository(db),
	}
}

// sendOTPEmail sends a reset OTP to the admin's email using SMTP2GO
func sendOTPEmail(email, otp string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	fromEmail := os.Getenv("FROM_EMAIL")

	senderEmail := fromEmail
	if senderEmail == "" {
		senderEmail = smtpUser
	}
	if smtpHost == "" {
		smtpHost = "mail.smtp2go.com"
	}
	if smtpUser == "" || smtpPass == "" {
		return fmt.Errorf("SMTP configuration is incomplete: check SMTP_USER and SMTP_PASS")
	}

	smtpPort := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			smtpPort = parsed
		}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", senderEmail)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Serbisyo Admin Password Reset")
	m.SetBody("text/plain", fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.", otp))

	d := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	if err := d.DialAndSend(m); err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}
	return nil
}

// Login authenticates an admin account
func (ac *AdminController) Login(c echo.Context) error {
	var loginReq struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if loginReq.Email == "" || loginReq.Password == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email and password are required",
		})
	}

	ctx := c.Request().Context()
	var admin models.User
	err := config.GetCollection(ac.db, "users").FindOne(ctx,
		bson.M{"email": loginReq.Email, "role": models.RoleAdmin}).Decode(&admin)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(loginReq.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(admin.ID.Hex(), admin.Email, models.RoleAdmin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"admin": map[string]interface{}{
				"id":       admin.ID.Hex(),
				"email":    admin.Email,
				"fullName": admin.FullName,
			},
		},
	})
}

// ForgotPassword emails a reset OTP to the configured admin mailbox
func (ac *AdminController) ForgotPassword(c echo.Context) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		log.Println("Admin email not configured")
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Admin email not configured",
		})
	}

	otp, err := utils.GenerateSecureOTP()
	if err != nil {
		log.Printf("Failed to generate OTP: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate OTP",
		})
	}

	otpStore[adminEmail] = OTPData{
		OTP:       otp,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}

	if err := sendOTPEmail(adminEmail, otp); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send OTP email",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "OTP sent successfully",
	})
}

// VerifyOTPAndResetPassword verifies the emailed OTP and sets a new password
func (ac *AdminController) VerifyOTPAndResetPassword(c echo.Context) error {
	var req struct {
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters",
		})
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	otpData, exists := otpStore[adminEmail]
	if !exists {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No OTP request found",
		})
	}
	if time.Now().After(otpData.ExpiresAt) {
		delete(otpStore, adminEmail)
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "OTP has expired",
		})
	}
	if req.OTP != otpData.OTP {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid OTP",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password",
		})
	}

	ctx := c.Request().Context()
	result, err := config.GetCollection(ac.db, "users").UpdateOne(ctx,
		bson.M{"email": adminEmail, "role": models.RoleAdmin},
		bson.M{"$set": bson.M{"password": string(hashed), "updatedAt": time.Now()}})
	if err != nil || result.MatchedCount == 0 {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password",
		})
	}

	delete(otpStore, adminEmail)
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset successful",
	})
}

// GetBookings lists bookings, optionally filtered by ?status=
func (ac *AdminController) GetBookings(c echo.Context) error {
	ctx := c.Request().Context()

	var bookings []models.Booking
	var err error
	if status := c.QueryParam("status"); status != "" {
		if !lifecycle.Status(status).Valid() {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("Unknown status %q", status),
			})
		}
		bookings, err = ac.bookings.ListByStatus(ctx, status)
	} else {
		bookings, err = ac.bookings.ListAll(ctx)
	}
	if err != nil {
		log.Printf("Failed to list bookings: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve bookings",
		})
	}

	return c.JSON(http.StatusOK, models.BookingsResponse{
		Status:  http.StatusOK,
		Message: "Bookings retrieved successfully",
		Data:    bookings,
	})
}

// GetPendingApprovals lists new bookings awaiting the admin gate
func (ac *AdminController) GetPendingApprovals(c echo.Context) error {
	ctx := c.Request().Context()
	bookings, err := ac.bookings.ListPendingApproval(ctx)
	if err != nil {
		log.Printf("Failed to list pending approvals: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve pending bookings",
		})
	}
	return c.JSON(http.StatusOK, models.BookingsResponse{
		Status:  http.StatusOK,
		Message: "Pending bookings retrieved successfully",
		Data:    bookings,
	})
}

// GetDashboardStats returns booking counts per status plus payment volume
func (ac *AdminController) GetDashboardStats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := ac.bookings.CountByStatus(ctx)
	if err != nil {
		log.Printf("Failed to aggregate booking counts: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute stats",
		})
	}
	pendingApproval, err := ac.bookings.PendingApprovalCount(ctx)
	if err != nil {
		pendingApproval = 0
	}

	var volume struct {
		Total float64 `bson:"total"`
		Count int64   `bson:"count"`
	}
	cursor, err := config.GetCollection(ac.db, "transactions").Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": "paid"}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err == nil {
		defer cursor.Close(ctx)
		if cursor.Next(ctx) {
			if err := cursor.Decode(&volume); err != nil {
				log.Printf("Failed to decode payment volume: %v", err)
			}
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Stats retrieved successfully",
		Data: map[string]interface{}{
			"bookingsByStatus": counts,
			"pendingApproval":  pendingApproval,
			"paymentVolume":    volume.Total,
			"paymentCount":     volume.Count,
		},
	})
}

// GetProviders lists provider accounts, optionally filtered by
// ?status=pending|approved|suspended|rejected
func (ac *AdminController) GetProviders(c echo.Context) error {
	ctx := c.Request().Context()

	filter := bson.M{"role": models.RoleProvider}
	if status := c.QueryParam("status"); status != "" {
		filter["providerInfo.status"] = status
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1}).SetProjection(bson.M{"password": 0})
	cursor, err := config.GetCollection(ac.db, "users").Find(ctx, filter, opts)
	if err != nil {
		log.Printf("Failed to list providers: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve providers",
		})
	}
	defer cursor.Close(ctx)

	var providers []models.User
	if err := cursor.All(ctx, &providers); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve providers",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Providers retrieved successfully",
		Data:    providers,
	})
}

// ReviewProvider approves, rejects, suspends or reinstates a provider
func (ac *AdminController) ReviewProvider(c echo.Context) error {
	providerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid provider ID",
		})
	}

	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	switch req.Status {
	case models.ProviderApproved, models.ProviderRejected, models.ProviderSuspended:
	default:
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "status must be 'approved', 'rejected' or 'suspended'",
		})
	}
	if req.Status != models.ProviderApproved && req.Reason == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A reason is required when rejecting or suspending",
		})
	}

	set := bson.M{
		"providerInfo.status": req.Status,
		"updatedAt":           time.Now(),
	}
	unset := bson.M{}
	switch req.Status {
	case models.ProviderApproved:
		unset["providerInfo.suspensionReason"] = ""
		unset["providerInfo.suspendedAt"] = ""
		unset["providerInfo.rejectionReason"] = ""
	case models.ProviderSuspended:
		set["providerInfo.suspensionReason"] = utils.SanitizeInput(req.Reason)
		set["providerInfo.suspendedAt"] = time.Now()
	case models.ProviderRejected:
		set["providerInfo.rejectionReason"] = utils.SanitizeInput(req.Reason)
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	ctx := c.Request().Context()
	result, err := config.GetCollection(ac.db, "users").UpdateOne(ctx,
		bson.M{"_id": providerID, "role": models.RoleProvider}, update)
	if err != nil {
		log.Printf("Failed to update provider %s: %v", providerID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update provider",
		})
	}
	if result.MatchedCount == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Provider not found",
		})
	}

	ac.notifyProviderReview(providerID, req.Status, req.Reason)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("Provider %s", req.Status),
	})
}

func (ac *AdminController) notifyProviderReview(providerID primitive.ObjectID, status, reason string) {
	title := "Account update"
	body := ""
	switch status {
	case models.ProviderApproved:
		title = "Account approved"
		body = "Your provider account has been approved. You can now receive bookings."
	case models.ProviderSuspended:
		title = "Account suspended"
		body = fmt.Sprintf("Your provider account has been suspended: %s", reason)
	case models.ProviderRejected:
		title = "Application rejected"
		body = fmt.Sprintf("Your provider application was rejected: %s", reason)
	}

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    providerID,
		Type:      "provider_" + status,
		Title:     title,
		Message:   body,
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := config.GetCollection(ac.db, "notifications").InsertOne(ctx, notification); err != nil {
		log.Printf("Failed to save provider review notification: %v", err)
	}
}

// GetTransactions lists payment transactions, newest first
func (ac *AdminController) GetTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	opts := options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(200)
	cursor, err := config.GetCollection(ac.db, "transactions").Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Printf("Failed to list transactions: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve transactions",
		})
	}
	defer cursor.Close(ctx)

	var transactions []models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve transactions",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transactions retrieved successfully",
		Data:    transactions,
	})
}

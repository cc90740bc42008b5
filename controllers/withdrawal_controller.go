package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WithdrawalController handles provider payout requests
type WithdrawalController struct {
	db       *mongo.Client
	users    *repositories.UserRepository
	validate *validator.Validate
}

func NewWithdrawalController(db *mongo.Client) *WithdrawalController {
	return &WithdrawalController{
		db:       db,
		users:    repositories.NewUserRepository(db),
		validate: validator.New(),
	}
}

func availableBalance(info *models.ProviderInfo) float64 {
	if info == nil {
		return 0
	}
	return info.TotalEarnings - info.TotalWithdrawn - info.PendingWithdrawal
}

// RequestWithdrawal creates a pending payout request against the
// provider's available balance.
func (wc *WithdrawalController) RequestWithdrawal(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, wc.db)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	if user.Role != models.RoleProvider || user.ProviderInfo == nil {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only providers can request withdrawals",
		})
	}
	if user.ProviderInfo.PayoutAccount == nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Set a payout account before requesting a withdrawal",
		})
	}

	var req models.WithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := wc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	balance := availableBalance(user.ProviderInfo)
	if req.Amount > balance {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Requested amount exceeds available balance of %.2f", balance),
		})
	}

	account := user.ProviderInfo.PayoutAccount
	withdrawal := models.Withdrawal{
		ID:            primitive.NewObjectID(),
		ProviderID:    user.ID,
		Amount:        req.Amount,
		Method:        account.Method,
		AccountNumber: account.AccountNumber,
		AccountName:   account.AccountName,
		Status:        models.WithdrawalPending,
		ProviderNote:  utils.SanitizeInput(req.Note),
		CreatedAt:     time.Now(),
	}

	ctx := c.Request().Context()
	if _, err := config.GetCollection(wc.db, "withdrawals").InsertOne(ctx, withdrawal); err != nil {
		log.Printf("Failed to create withdrawal: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create withdrawal request",
		})
	}

	// Hold the amount so overlapping requests cannot overdraw
	_, err = config.GetCollection(wc.db, "users").UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$inc": bson.M{"providerInfo.pendingWithdrawal": req.Amount}})
	if err != nil {
		log.Printf("Failed to hold withdrawal amount for %s: %v", user.ID.Hex(), err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Withdrawal request submitted",
		Data:    withdrawal,
	})
}

// GetMyWithdrawals lists the provider's own withdrawal history
func (wc *WithdrawalController) GetMyWithdrawals(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := config.GetCollection(wc.db, "withdrawals").Find(ctx, bson.M{"providerId": userID}, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve withdrawals",
		})
	}
	defer cursor.Close(ctx)

	var withdrawals []models.Withdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve withdrawals",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawals retrieved successfully",
		Data:    withdrawals,
	})
}

// GetEarningsSummary reports the provider's balance and completed jobs
func (wc *WithdrawalController) GetEarningsSummary(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, wc.db)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	if user.Role != models.RoleProvider || user.ProviderInfo == nil {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only providers have earnings",
		})
	}

	ctx := c.Request().Context()
	completed, err := config.GetCollection(wc.db, "bookings").CountDocuments(ctx, bson.M{
		"providerId": user.ID,
		"status":     string(lifecycle.StatusCompleted),
	})
	if err != nil {
		completed = 0
	}

	info := user.ProviderInfo
	summary := models.EarningsSummary{
		TotalEarnings:     info.TotalEarnings,
		TotalWithdrawn:    info.TotalWithdrawn,
		PendingWithdrawal: info.PendingWithdrawal,
		AvailableBalance:  availableBalance(info),
		CompletedBookings: completed,
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earnings summary retrieved successfully",
		Data:    summary,
	})
}

// GetWithdrawals lists withdrawal requests for the admin, optionally
// filtered by ?status=
func (wc *WithdrawalController) GetWithdrawals(c echo.Context) error {
	filter := bson.M{}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	ctx := c.Request().Context()
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := config.GetCollection(wc.db, "withdrawals").Find(ctx, filter, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve withdrawals",
		})
	}
	defer cursor.Close(ctx)

	var withdrawals []models.Withdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve withdrawals",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawals retrieved successfully",
		Data:    withdrawals,
	})
}

// ReviewWithdrawal records the admin decision. Approval marks the payout
// as paid and moves the held amount to totalWithdrawn; rejection releases
// the hold back to the available balance.
func (wc *WithdrawalController) ReviewWithdrawal(c echo.Context) error {
	adminID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	withdrawalID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid withdrawal ID",
		})
	}

	var req models.WithdrawalReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if !req.Approve && req.Reason == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A reason is required when rejecting",
		})
	}

	ctx := c.Request().Context()
	withdrawals := config.GetCollection(wc.db, "withdrawals")

	now := time.Now()
	newStatus := models.WithdrawalRejected
	if req.Approve {
		newStatus = models.WithdrawalPaid
	}
	set := bson.M{
		"status":      newStatus,
		"processedAt": now,
		"adminId":     adminID,
		"adminNote":   utils.SanitizeInput(req.Note),
	}
	if req.Approve {
		set["payoutRef"] = utils.SanitizeInput(req.PayoutRef)
	} else {
		set["rejectionReason"] = utils.SanitizeInput(req.Reason)
	}

	// Only a still-pending request can be decided; a repeat review misses
	// the filter and reports a conflict.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var withdrawal models.Withdrawal
	err = withdrawals.FindOneAndUpdate(ctx,
		bson.M{"_id": withdrawalID, "status": models.WithdrawalPending},
		bson.M{"$set": set}, opts).Decode(&withdrawal)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Withdrawal not found or already processed",
			})
		}
		log.Printf("Failed to review withdrawal %s: %v", withdrawalID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to review withdrawal",
		})
	}

	inc := bson.M{"providerInfo.pendingWithdrawal": -withdrawal.Amount}
	if req.Approve {
		inc["providerInfo.totalWithdrawn"] = withdrawal.Amount
	}
	_, err = config.GetCollection(wc.db, "users").UpdateOne(ctx,
		bson.M{"_id": withdrawal.ProviderID}, bson.M{"$inc": inc})
	if err != nil {
		log.Printf("Failed to settle withdrawal hold for provider %s: %v", withdrawal.ProviderID.Hex(), err)
	}

	wc.notifyWithdrawalDecision(&withdrawal, req.Approve)

	verdict := "rejected"
	if req.Approve {
		verdict = "paid"
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("Withdrawal %s", verdict),
		Data:    withdrawal,
	})
}

func (wc *WithdrawalController) notifyWithdrawalDecision(withdrawal *models.Withdrawal, approved bool) {
	title := "Withdrawal rejected"
	message := fmt.Sprintf("Your withdrawal of PHP %.2f was rejected: %s", withdrawal.Amount, withdrawal.RejectionReason)
	notificationType := "withdrawal_rejected"
	if approved {
		title = "Withdrawal paid"
		message = fmt.Sprintf("Your withdrawal of PHP %.2f has been sent to your %s account", withdrawal.Amount, withdrawal.Method)
		notificationType = "withdrawal_paid"
	}

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    withdrawal.ProviderID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := config.GetCollection(wc.db, "notifications").InsertOne(ctx, notification); err != nil {
		log.Printf("Failed to save withdrawal notification: %v", err)
	}
}

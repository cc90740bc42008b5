// controllers/user_controller.go
package controllers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/utils"
)

// UserController contains user profile management logic
type UserController struct {
	DB       *mongo.Client
	userRepo *repositories.UserRepository
	validate *validator.Validate
}

// NewUserController creates a new user controller
func NewUserController(db *mongo.Client, userRepo *repositories.UserRepository) *UserController {
	return &UserController{DB: db, userRepo: userRepo, validate: validator.New()}
}

// GetProfile handler gets the current user's profile
func (uc *UserController) GetProfile(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, uc.DB)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	user.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully",
		Data:    user,
	})
}

// UpdateProfile handler updates the current user's editable profile fields
func (uc *UserController) UpdateProfile(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, uc.DB)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req struct {
		FullName    string           `json:"fullName"`
		Address     string           `json:"address"`
		Location    *models.GeoPoint `json:"location"`
		ServiceType string           `json:"serviceType"`
		FixedPrice  float64          `json:"fixedPrice"`
		Description string           `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.FullName != "" {
		set["fullName"] = utils.SanitizeInput(req.FullName)
	}
	if req.Address != "" {
		set["address"] = utils.SanitizeInput(req.Address)
	}
	if req.Location != nil {
		set["location"] = req.Location
	}
	if user.Role == models.RoleProvider && user.ProviderInfo != nil {
		if req.ServiceType != "" {
			set["providerInfo.serviceType"] = utils.SanitizeInput(req.ServiceType)
		}
		if req.FixedPrice > 0 {
			set["providerInfo.fixedPrice"] = req.FixedPrice
		}
		if req.Description != "" {
			set["providerInfo.description"] = utils.SanitizeInput(req.Description)
		}
	}

	ctx := c.Request().Context()
	_, err = config.GetCollection(uc.DB, "users").UpdateOne(ctx,
		bson.M{"_id": user.ID}, bson.M{"$set": set})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update profile",
		})
	}

	updated, err := uc.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reload profile",
		})
	}
	updated.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated successfully",
		Data:    updated,
	})
}

// UploadProfilePhoto stores a base64 image as the user's profile picture
func (uc *UserController) UploadProfilePhoto(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, uc.DB)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req struct {
		Image    string `json:"image"`
		FileName string `json:"fileName"`
	}
	if err := c.Bind(&req); err != nil || req.Image == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "An image is required",
		})
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid image format",
		})
	}

	ext := filepath.Ext(req.FileName)
	if ext == "" {
		ext = ".jpg"
	}
	filename := fmt.Sprintf("profiles/%s/%d%s", user.ID.Hex(), time.Now().Unix(), ext)
	url, err := utils.UploadFile(decoded, filename, "image")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to upload image",
		})
	}

	if err := uc.userRepo.UpdateProfilePicture(user.ID, url); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to save profile picture",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile picture updated",
		Data:    map[string]string{"profilePic": url},
	})
}

// SetPayoutAccount sets the e-wallet the provider's earnings are paid to
func (uc *UserController) SetPayoutAccount(c echo.Context) error {
	user, err := utils.GetUserFromToken(c, uc.DB)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	if user.Role != models.RoleProvider {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only providers have payout accounts",
		})
	}

	var req models.PayoutAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := uc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	account := models.PayoutAccount{
		Method:        req.Method,
		AccountNumber: utils.SanitizeInput(req.AccountNumber),
		AccountName:   utils.SanitizeInput(req.AccountName),
	}
	_, err = config.GetCollection(uc.DB, "users").UpdateOne(c.Request().Context(),
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"providerInfo.payoutAccount": account, "updatedAt": time.Now()}})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to save payout account",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout account saved",
	})
}

// UpdateFCMToken registers the device token for push notifications
func (uc *UserController) UpdateFCMToken(c echo.Context) error {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.FCMTokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A token is required",
		})
	}

	if err := uc.userRepo.UpdateFCMToken(c.Request().Context(), userID, req.Token); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to save FCM token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "FCM token updated",
	})
}

// GetProvider returns a provider's public profile
func (uc *UserController) GetProvider(c echo.Context) error {
	providerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid provider ID",
		})
	}

	provider, err := uc.userRepo.GetByID(c.Request().Context(), providerID)
	if err != nil || provider.Role != models.RoleProvider {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Provider not found",
		})
	}

	provider.Password = ""
	provider.FCMToken = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Provider retrieved successfully",
		Data:    provider,
	})
}

// ListProviders lists approved providers, optionally filtered by
// ?serviceType=
func (uc *UserController) ListProviders(c echo.Context) error {
	filter := bson.M{
		"role":                models.RoleProvider,
		"providerInfo.status": models.ProviderApproved,
	}
	if serviceType := c.QueryParam("serviceType"); serviceType != "" {
		filter["providerInfo.serviceType"] = serviceType
	}

	ctx := c.Request().Context()
	cursor, err := config.GetCollection(uc.DB, "users").Find(ctx, filter)
	if err != nil {
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
	for i := range providers {
		providers[i].Password = ""
		providers[i].FCMToken = ""
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Providers retrieved successfully",
		Data:    providers,
	})
}

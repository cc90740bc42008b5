package controllers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/middleware"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/services"
	"github.com/serbisyo/serbisyo_backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// AuthController handles signup, login and token management
type AuthController struct {
	db       *mongo.Client
	google   *services.GoogleAuthService
	validate *validator.Validate
}

func NewAuthController(db *mongo.Client) *AuthController {
	return &AuthController{
		db:       db,
		google:   services.NewGoogleAuthService(db),
		validate: validator.New(),
	}
}

// Signup starts registration: the account is only created once the phone
// OTP is verified, so the signup payload is parked alongside the OTP.
func (ac *AuthController) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := ac.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email address",
		})
	}
	phone, err := utils.SanitizePhone(req.Phone)
	if err != nil || phone == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number",
		})
	}
	req.Email = email
	req.Phone = phone
	req.FullName = utils.SanitizeInput(req.FullName)
	req.ServiceType = utils.SanitizeInput(req.ServiceType)
	req.Description = utils.SanitizeInput(req.Description)

	if req.Role == models.RoleProvider && req.ServiceType == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "serviceType is required for provider accounts",
		})
	}

	ctx := c.Request().Context()
	users := config.GetCollection(ac.db, "users")

	count, err := users.CountDocuments(ctx, bson.M{"$or": []bson.M{
		{"email": req.Email},
		{"phone": req.Phone},
	}})
	if err != nil {
		log.Printf("Signup lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process signup",
		})
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "An account with this email or phone already exists",
		})
	}

	// Throttle OTP sends per phone number
	if redisClient := config.GetRedisClient(); redisClient != nil {
		if err := utils.ValidateOTPAttempts(req.Phone, redisClient); err != nil {
			return c.JSON(http.StatusTooManyRequests, models.Response{
				Status:  http.StatusTooManyRequests,
				Message: "Too many OTP requests, please try again later",
			})
		}
	}

	otp, err := utils.GenerateSecureOTP()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate verification code",
		})
	}

	phoneOTP := models.PhoneOTP{
		Phone:      req.Phone,
		OTP:        otp,
		SignupData: &req,
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}
	_, err = config.GetCollection(ac.db, "phone_otps").ReplaceOne(ctx,
		bson.M{"phone": req.Phone}, phoneOTP, options.Replace().SetUpsert(true))
	if err != nil {
		log.Printf("Failed to store signup OTP: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process signup",
		})
	}

	if err := utils.SendOTPViaSMS(req.Phone, otp); err != nil {
		log.Printf("Failed to send OTP to %s: %v", req.Phone, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send verification code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Verification code sent to your phone",
	})
}

// VerifySignupOTP checks the phone OTP and creates the account
func (ac *AuthController) VerifySignupOTP(c echo.Context) error {
	var req struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	req.Phone = utils.SanitizeInput(req.Phone)
	req.OTP = utils.SanitizeInput(req.OTP)

	ctx := c.Request().Context()
	otps := config.GetCollection(ac.db, "phone_otps")

	var phoneOTP models.PhoneOTP
	if err := otps.FindOne(ctx, bson.M{"phone": req.Phone}).Decode(&phoneOTP); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No pending verification for this phone",
		})
	}
	if time.Now().After(phoneOTP.ExpiresAt) {
		otps.DeleteOne(ctx, bson.M{"phone": req.Phone})
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Verification code has expired",
		})
	}
	if phoneOTP.OTP != req.OTP {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid verification code",
		})
	}
	if phoneOTP.SignupData == nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No signup data found, please sign up again",
		})
	}

	signup := phoneOTP.SignupData
	hashed, err := bcrypt.GenerateFromPassword([]byte(signup.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create account",
		})
	}

	now := time.Now()
	user := models.User{
		ID:            primitive.NewObjectID(),
		Email:         signup.Email,
		Password:      string(hashed),
		FullName:      signup.FullName,
		Phone:         signup.Phone,
		Role:          signup.Role,
		IsActive:      true,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if signup.Role == models.RoleProvider {
		// New providers wait for admin review before receiving bookings
		user.ProviderInfo = &models.ProviderInfo{
			ServiceType: signup.ServiceType,
			FixedPrice:  signup.FixedPrice,
			Description: signup.Description,
			Status:      models.ProviderPending,
		}
	}

	if _, err := config.GetCollection(ac.db, "users").InsertOne(ctx, user); err != nil {
		log.Printf("Failed to create user: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create account",
		})
	}
	otps.DeleteOne(ctx, bson.M{"phone": req.Phone})

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Account created but failed to generate token, please log in",
		})
	}

	user.Password = ""
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Account created successfully",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         user,
		},
	})
}

// Login authenticates by email or phone plus password
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.Password == "" || (req.Email == "" && req.Phone == "") {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email or phone and password are required",
		})
	}

	filter := bson.M{}
	if req.Email != "" {
		filter["email"] = strings.ToLower(strings.TrimSpace(req.Email))
	} else {
		filter["phone"] = utils.SanitizeInput(req.Phone)
	}

	ctx := c.Request().Context()
	var user models.User
	if err := config.GetCollection(ac.db, "users").FindOne(ctx, filter).Decode(&user); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	data := map[string]interface{}{
		"token":        token,
		"refreshToken": refreshToken,
	}
	user.Password = ""
	data["user"] = user

	// Remember Me stores encrypted credentials in Redis for 30 days
	if req.RememberMe {
		if redisClient := config.GetRedisClient(); redisClient != nil {
			rememberToken, err := utils.GenerateRememberMeToken()
			if err == nil {
				creds := utils.RememberedCredentials{
					Email:     user.Email,
					Phone:     user.Phone,
					Role:      user.Role,
					UserID:    user.ID.Hex(),
					ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
				}
				if err := utils.StoreRememberedCredentials(redisClient, rememberToken, creds, 30*24*time.Hour); err != nil {
					log.Printf("Failed to store remember-me token: %v", err)
				} else {
					data["rememberMeToken"] = rememberToken
				}
			}
		}
	}

	go ac.touchLastActivity(user.ID)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    data,
	})
}

func (ac *AuthController) touchLastActivity(userID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := config.GetCollection(ac.db, "users").UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"lastActivityAt": time.Now(), "isActive": true}})
	if err != nil {
		log.Printf("Failed to update last activity: %v", err)
	}
}

// LoginWithRememberMe exchanges a remember-me token for a fresh JWT pair
func (ac *AuthController) LoginWithRememberMe(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Remember-me token is required",
		})
	}

	redisClient := config.GetRedisClient()
	if redisClient == nil {
		return c.JSON(http.StatusServiceUnavailable, models.Response{
			Status:  http.StatusServiceUnavailable,
			Message: "Remember Me is not available",
		})
	}

	creds, err := utils.RetrieveRememberedCredentials(redisClient, req.Token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired remember-me token",
		})
	}

	userID, err := primitive.ObjectIDFromHex(creds.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired remember-me token",
		})
	}

	ctx := c.Request().Context()
	var user models.User
	if err := config.GetCollection(ac.db, "users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Account no longer exists",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	user.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         user,
		},
	})
}

// RefreshToken exchanges a valid refresh token for a new token pair
func (ac *AuthController) RefreshToken(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Refresh token is required",
		})
	}

	claims := &middleware.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(req.RefreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(middleware.GetJWTSecret()), nil
	})
	if err != nil || !token.Valid || middleware.IsTokenBlacklisted(req.RefreshToken) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid refresh token",
		})
	}

	newToken, newRefreshToken, err := middleware.GenerateJWT(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token refreshed",
		Data: map[string]interface{}{
			"token":        newToken,
			"refreshToken": newRefreshToken,
		},
	})
}

// Logout blacklists the current token and drops any remember-me token
func (ac *AuthController) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No token provided",
		})
	}

	claims := &middleware.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(middleware.GetJWTSecret()), nil
	})
	if err == nil && token.Valid {
		middleware.BlacklistToken(tokenString, time.Unix(claims.ExpiresAt, 0))
	}

	var req struct {
		RememberMeToken string `json:"rememberMeToken"`
	}
	if err := c.Bind(&req); err == nil && req.RememberMeToken != "" {
		if redisClient := config.GetRedisClient(); redisClient != nil {
			if err := utils.RemoveRememberedCredentials(redisClient, req.RememberMeToken); err != nil {
				log.Printf("Failed to remove remember-me token: %v", err)
			}
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully",
	})
}

// ForgotPassword sends a reset OTP to the account's phone
func (ac *AuthController) ForgotPassword(c echo.Context) error {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil || req.Phone == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Phone is required",
		})
	}
	req.Phone = utils.SanitizeInput(req.Phone)

	ctx := c.Request().Context()
	users := config.GetCollection(ac.db, "users")

	var user models.User
	if err := users.FindOne(ctx, bson.M{"phone": req.Phone}).Decode(&user); err != nil {
		// Same response whether or not the account exists
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "If the phone is registered, a reset code has been sent",
		})
	}

	if redisClient := config.GetRedisClient(); redisClient != nil {
		if err := utils.ValidateOTPAttempts(req.Phone, redisClient); err != nil {
			return c.JSON(http.StatusTooManyRequests, models.Response{
				Status:  http.StatusTooManyRequests,
				Message: "Too many OTP requests, please try again later",
			})
		}
	}

	otp, err := utils.GenerateSecureOTP()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate reset code",
		})
	}

	_, err = users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"otpInfo": models.OTPInfo{OTP: otp, ExpiresAt: time.Now().Add(10 * time.Minute)},
	}})
	if err != nil {
		log.Printf("Failed to store reset OTP: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process request",
		})
	}

	message := "Your Serbisyo password reset code is " + otp + ". It expires in 10 minutes."
	if err := utils.SendOTPViaSMSWithMessage(req.Phone, otp, message); err != nil {
		log.Printf("Failed to send reset OTP to %s: %v", req.Phone, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "If the phone is registered, a reset code has been sent",
	})
}

// ResetPassword verifies the reset OTP and sets a new password
func (ac *AuthController) ResetPassword(c echo.Context) error {
	var req struct {
		Phone       string `json:"phone"`
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

	ctx := c.Request().Context()
	users := config.GetCollection(ac.db, "users")

	var user models.User
	if err := users.FindOne(ctx, bson.M{"phone": utils.SanitizeInput(req.Phone)}).Decode(&user); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid reset code",
		})
	}
	if user.OTPInfo == nil || user.OTPInfo.OTP != req.OTP || time.Now().After(user.OTPInfo.ExpiresAt) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid or expired reset code",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password",
		})
	}

	_, err = users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set":   bson.M{"password": string(hashed), "updatedAt": time.Now()},
		"$unset": bson.M{"otpInfo": ""},
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset successful",
	})
}

// GoogleAuth signs a user in (or up) with a Google ID token
func (ac *AuthController) GoogleAuth(c echo.Context) error {
	var req models.GoogleAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.TokenID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "tokenId is required",
		})
	}

	data, err := ac.google.AuthenticateUser(c.Request().Context(), &req)
	if err != nil {
		log.Printf("Google authentication failed: %v", err)
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Google authentication failed",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    data,
	})
}

package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/serbisyo/serbisyo_backend/controllers"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/middleware"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/services"
	"github.com/serbisyo/serbisyo_backend/websocket"
)

// SetupRoutes wires every API route group and the websocket endpoint
func SetupRoutes(e *echo.Echo, db *mongo.Client, hub *websocket.Hub) {
	engine := lifecycle.NewEngine(repositories.NewBookingRepository(db))
	dispatcher := services.NewNotificationDispatcher(db, hub)
	gateway := services.NewPayMongoService()
	watcher := services.NewPaymentWatcher(db, gateway, engine, dispatcher)

	authController := controllers.NewAuthController(db)
	userController := controllers.NewUserController(db, repositories.NewUserRepository(db))
	bookingController := controllers.NewBookingController(db, hub, engine, dispatcher)
	paymentController := controllers.NewPaymentController(db, engine, gateway, watcher, dispatcher)
	adminController := controllers.NewAdminController(db)
	notificationController := controllers.NewNotificationController(db)
	withdrawalController := controllers.NewWithdrawalController(db)
	reviewController := controllers.NewReviewController(db)

	RegisterAuthRoutes(e, authController)
	RegisterUserRoutes(e, userController, notificationController, reviewController)
	RegisterBookingRoutes(e, bookingController)
	RegisterPaymentRoutes(e, paymentController)
	RegisterWithdrawalRoutes(e, withdrawalController)
	RegisterAdminRoutes(e, adminController, bookingController, withdrawalController)
	RegisterFileRoutes(e)

	// Websocket endpoint; an unauthenticated client can still connect and
	// send AUTH:<token> in-band.
	e.GET("/ws", func(c echo.Context) error {
		userID := primitive.NilObjectID
		if token := c.QueryParam("token"); token != "" {
			uid, err := middleware.ValidateToken(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Invalid token",
				})
			}
			userID = uid
		}
		return websocket.HandleWebSocket(c, hub, userID, middleware.ValidateToken)
	})
}

// partyEvents and adminEvents list which lifecycle events each surface
// exposes. The engine's own guard stays authoritative; routes just shape
// the URLs.
var partyEvents = []lifecycle.Event{
	lifecycle.EventCancel,
	lifecycle.EventAccept,
	lifecycle.EventDecline,
	lifecycle.EventOffer,
	lifecycle.EventCounter,
	lifecycle.EventAcceptCounter,
	lifecycle.EventStart,
	lifecycle.EventMarkComplete,
	lifecycle.EventConfirmCompletion,
	lifecycle.EventPayCash,
	lifecycle.EventConfirmReceipt,
	lifecycle.EventDispute,
}

var adminEvents = []lifecycle.Event{
	lifecycle.EventAdminApprove,
	lifecycle.EventAdminReject,
	lifecycle.EventResolveDispute,
	lifecycle.EventRefund,
}

// RegisterBookingRoutes sets up the client/provider booking endpoints
func RegisterBookingRoutes(e *echo.Echo, bookingController *controllers.BookingController) {
	r := e.Group("/api/bookings")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireRole(models.RoleClient, models.RoleProvider, models.RoleAdmin))

	r.POST("", bookingController.CreateBooking)
	r.GET("/mine", bookingController.GetMyBookings)
	r.GET("/:id", bookingController.GetBooking)
	r.PUT("/:id", bookingController.EditBooking)

	for _, event := range partyEvents {
		r.POST("/:id/"+string(event), bookingController.Transition(event))
	}

	r.POST("/:id/charges", bookingController.ProposeCharge)
	r.POST("/:id/charges/:chargeId", bookingController.ReviewCharge)
}

// RegisterPaymentRoutes sets up checkout and the gateway webhook
func RegisterPaymentRoutes(e *echo.Echo, paymentController *controllers.PaymentController) {
	// The webhook is called by the gateway, not by a logged-in user
	e.POST("/api/payments/webhook", paymentController.Webhook)

	r := e.Group("/api/payments")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireRole(models.RoleClient))
	r.POST("/bookings/:id/checkout", paymentController.InitiateCheckout)
	r.GET("/bookings/:id/verify", paymentController.VerifyPayment)
}

// RegisterWithdrawalRoutes sets up the provider payout endpoints
func RegisterWithdrawalRoutes(e *echo.Echo, withdrawalController *controllers.WithdrawalController) {
	r := e.Group("/api/withdrawals")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireRole(models.RoleProvider))

	r.POST("", withdrawalController.RequestWithdrawal)
	r.GET("/mine", withdrawalController.GetMyWithdrawals)
	r.GET("/earnings", withdrawalController.GetEarningsSummary)
}

// RegisterAuthRoutes sets up public authentication routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	e.POST("/api/auth/signup", authController.Signup)
	e.POST("/api/auth/verify-otp", authController.VerifySignupOTP)
	e.POST("/api/auth/login", authController.Login)
	e.POST("/api/auth/remember-me", authController.LoginWithRememberMe)
	e.POST("/api/auth/refresh-token", authController.RefreshToken)
	e.POST("/api/auth/logout", authController.Logout)
	e.POST("/api/auth/forgot-password", authController.ForgotPassword)
	e.POST("/api/auth/reset-password", authController.ResetPassword)
	e.POST("/api/auth/google", authController.GoogleAuth)
}

// RegisterUserRoutes sets up profile, notification and review routes
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController, notificationController *controllers.NotificationController, reviewController *controllers.ReviewController) {
	// Public provider discovery
	e.GET("/api/providers", userController.ListProviders)
	e.GET("/api/providers/:id", userController.GetProvider)
	e.GET("/api/providers/:id/reviews", reviewController.GetReviewsByProvider)

	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())

	r.GET("/users/profile", userController.GetProfile)
	r.PUT("/users/profile", userController.UpdateProfile)
	r.POST("/users/profile-photo", userController.UploadProfilePhoto)
	r.PUT("/users/payout-account", userController.SetPayoutAccount)
	r.PUT("/users/fcm-token", userController.UpdateFCMToken)

	r.GET("/notifications", notificationController.GetNotifications)
	r.GET("/notifications/unread-count", notificationController.GetUnreadCount)
	r.PUT("/notifications/:id/read", notificationController.MarkRead)
	r.PUT("/notifications/read-all", notificationController.MarkAllRead)

	r.POST("/reviews", reviewController.CreateReview)
}

// RegisterAdminRoutes sets up the admin dashboard routes
func RegisterAdminRoutes(e *echo.Echo, adminController *controllers.AdminController, bookingController *controllers.BookingController, withdrawalController *controllers.WithdrawalController) {
	// Public admin auth
	e.POST("/api/admin/login", adminController.Login)
	e.POST("/api/admin/forgot-password", adminController.ForgotPassword)
	e.POST("/api/admin/reset-password", adminController.VerifyOTPAndResetPassword)

	protected := e.Group("/api/admin")
	protected.Use(middleware.JWTMiddleware())
	protected.Use(middleware.RequireRole(models.RoleAdmin))

	protected.GET("/bookings", adminController.GetBookings)
	protected.GET("/bookings/pending-approval", adminController.GetPendingApprovals)
	protected.GET("/stats", adminController.GetDashboardStats)
	protected.GET("/transactions", adminController.GetTransactions)

	for _, event := range adminEvents {
		protected.POST("/bookings/:id/"+string(event), bookingController.Transition(event))
	}

	protected.GET("/providers", adminController.GetProviders)
	protected.PUT("/providers/:id/review", adminController.ReviewProvider)

	protected.GET("/withdrawals", withdrawalController.GetWithdrawals)
	protected.PUT("/withdrawals/:id/review", withdrawalController.ReviewWithdrawal)
}

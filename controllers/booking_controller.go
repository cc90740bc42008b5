package controllers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/serbisyo/serbisyo_backend/repositories"
	"github.com/serbisyo/serbisyo_backend/services"
	"github.com/serbisyo/serbisyo_backend/utils"
	"github.com/serbisyo/serbisyo_backend/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// BookingController handles booking-related API endpoints
type BookingController struct {
	db         *mongo.Client
	hub        *websocket.Hub
	engine     *lifecycle.Engine
	bookings   *repositories.BookingRepository
	users      *repositories.UserRepository
	dispatcher *services.NotificationDispatcher
	validate   *validator.Validate
}

// NewBookingController creates a new booking controller
func NewBookingController(db *mongo.Client, hub *websocket.Hub, engine *lifecycle.Engine, dispatcher *services.NotificationDispatcher) *BookingController {
	return &BookingController{
		db:         db,
		hub:        hub,
		engine:     engine,
		bookings:   repositories.NewBookingRepository(db),
		users:      repositories.NewUserRepository(db),
		dispatcher: dispatcher,
		validate:   validator.New(),
	}
}

// CreateBooking handles the creation of a new booking
func (c *BookingController) CreateBooking(ctx echo.Context) error {
	user, err := utils.GetUserFromToken(ctx, c.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	if user.Role != models.RoleClient {
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only clients can create bookings",
		})
	}

	var request models.BookingRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if err := c.validate.Struct(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Validation failed: %v", err),
		})
	}

	// Look up the provider and make sure they can take bookings
	providerID, err := primitive.ObjectIDFromHex(request.ProviderID)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid provider ID",
		})
	}

	provider, err := c.users.GetByID(ctx.Request().Context(), providerID)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Provider not found",
		})
	}
	if !provider.IsApprovedProvider() {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Provider is not accepting bookings",
		})
	}

	mediaTypes, mediaURLs, thumbnailURLs, err := c.saveMedia(user.ID, &request)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	booking := &models.Booking{
		ClientID:      user.ID,
		ProviderID:    &providerID,
		Status:        string(lifecycle.StatusPending),
		AdminApproved: false,
		ServiceType:   utils.SanitizeInput(request.ServiceType),
		Description:   utils.SanitizeInput(request.Description),
		ScheduledDate: request.ScheduledDate,
		ScheduledTime: request.ScheduledTime,
		Address:       utils.SanitizeInput(request.Address),
		Location:      request.Location,
		IsNegotiable:  request.IsNegotiable,
		MediaTypes:    mediaTypes,
		MediaURLs:     mediaURLs,
		ThumbnailURLs: thumbnailURLs,
	}
	if provider.ProviderInfo != nil {
		booking.ProviderFixedPrice = provider.ProviderInfo.FixedPrice
	}
	if request.IsNegotiable && request.OfferedPrice > 0 {
		booking.OfferedPrice = request.OfferedPrice
	}

	created, err := c.bookings.Create(ctx.Request().Context(), booking)
	if err != nil {
		log.Printf("Failed to create booking: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create booking",
		})
	}

	// The provider hears about the booking once an admin approves it; the
	// live feed only tells them a request is queued.
	if err := c.hub.NotifyNewBooking(providerID, created); err != nil {
		log.Printf("Provider %s not connected for new booking alert: %v", providerID.Hex(), err)
	}

	return ctx.JSON(http.StatusCreated, models.BookingResponse{
		Status:  http.StatusCreated,
		Message: "Booking created and awaiting admin approval",
		Data:    created,
	})
}

// saveMedia decodes and stores any base64 attachments on the request.
func (c *BookingController) saveMedia(clientID primitive.ObjectID, request *models.BookingRequest) (mediaTypes, mediaURLs, thumbnailURLs []string, err error) {
	for i := range request.MediaFiles {
		mediaType := "image"
		if len(request.MediaTypes) > i {
			mediaType = request.MediaTypes[i]
		}
		if mediaType != "image" && mediaType != "video" {
			return nil, nil, nil, fmt.Errorf("invalid media type, must be 'image' or 'video'")
		}

		decodedFile, err := base64.StdEncoding.DecodeString(request.MediaFiles[i])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid media file format")
		}

		timestamp := time.Now().Unix()
		uniqueID := primitive.NewObjectID().Hex()
		fileExt := ".jpg"
		if len(request.MediaFileNames) > i {
			fileExt = filepath.Ext(request.MediaFileNames[i])
		}
		if fileExt == "" {
			if mediaType == "image" {
				fileExt = ".jpg"
			} else {
				fileExt = ".mp4"
			}
		}
		filename := fmt.Sprintf("bookings/%s/%d_%s%s", clientID.Hex(), timestamp, uniqueID, fileExt)

		mediaURL, err := utils.UploadFile(decodedFile, filename, mediaType)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to upload media file: %v", err)
		}
		mediaTypes = append(mediaTypes, mediaType)
		mediaURLs = append(mediaURLs, mediaURL)

		var thumbnailURL string
		if mediaType == "video" {
			thumbnailURL, err = utils.GenerateVideoThumbnail(mediaURL)
		} else {
			thumbnailURL, err = utils.GenerateImageThumbnail(mediaURL)
		}
		if err != nil {
			log.Printf("Failed to generate thumbnail for %s: %v", mediaURL, err)
			thumbnailURL = ""
		}
		thumbnailURLs = append(thumbnailURLs, thumbnailURL)
	}
	return mediaTypes, mediaURLs, thumbnailURLs, nil
}

// GetBooking returns a single booking visible to the requesting user
func (c *BookingController) GetBooking(ctx echo.Context) error {
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

	booking, err := c.bookings.GetBooking(ctx.Request().Context(), bookingID)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Booking not found",
		})
	}

	if !c.canView(user, booking) {
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "You are not a party to this booking",
		})
	}

	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: "Booking retrieved successfully",
		Data:    booking,
	})
}

// GetMyBookings lists bookings for the requesting client or provider
func (c *BookingController) GetMyBookings(ctx echo.Context) error {
	user, err := utils.GetUserFromToken(ctx, c.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var bookings []models.Booking
	switch user.Role {
	case models.RoleProvider:
		bookings, err = c.bookings.ListByProvider(ctx.Request().Context(), user.ID)
	default:
		bookings, err = c.bookings.ListByClient(ctx.Request().Context(), user.ID)
	}
	if err != nil {
		log.Printf("Failed to list bookings for user %s: %v", user.ID.Hex(), err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve bookings",
		})
	}

	// Providers don't see bookings that are still awaiting admin approval
	if user.Role == models.RoleProvider {
		visible := bookings[:0]
		for _, b := range bookings {
			if b.AdminApproved {
				visible = append(visible, b)
			}
		}
		bookings = visible
	}

	return ctx.JSON(http.StatusOK, models.BookingsResponse{
		Status:  http.StatusOK,
		Message: "Bookings retrieved successfully",
		Data:    bookings,
	})
}

// EditBooking updates descriptive fields while the booking still awaits
// admin approval.
func (c *BookingController) EditBooking(ctx echo.Context) error {
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
			Message: "Only the booking's client can edit it",
		})
	}
	if booking.AdminApproved || booking.Status != string(lifecycle.StatusPending) {
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Booking can no longer be edited",
		})
	}

	var request models.BookingEditRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}

	set := bson.M{"updatedAt": time.Now()}
	if request.Description != "" {
		set["description"] = utils.SanitizeInput(request.Description)
	}
	if request.ScheduledDate != nil {
		set["scheduledDate"] = *request.ScheduledDate
	}
	if request.ScheduledTime != "" {
		set["scheduledTime"] = request.ScheduledTime
	}
	if request.Address != "" {
		set["address"] = utils.SanitizeInput(request.Address)
	}
	if request.Location != nil {
		set["location"] = request.Location
	}

	collection := config.GetCollection(c.db, "bookings")
	if _, err := collection.UpdateOne(ctx.Request().Context(),
		bson.M{"_id": bookingID, "status": string(lifecycle.StatusPending), "adminApproved": false},
		bson.M{"$set": set}); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update booking",
		})
	}

	updated, err := c.bookings.GetBooking(ctx.Request().Context(), bookingID)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reload booking",
		})
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: "Booking updated successfully",
		Data:    updated,
	})
}

// Transition applies a lifecycle event named in the URL to a booking.
// Routes pin which events each role can reach; the engine enforces the
// rest.
func (c *BookingController) Transition(event lifecycle.Event) echo.HandlerFunc {
	return func(ctx echo.Context) error {
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

		var request models.TransitionRequest
		if err := ctx.Bind(&request); err != nil {
			return ctx.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid request",
			})
		}
		request.Reason = utils.SanitizeInput(request.Reason)
		request.Note = utils.SanitizeInput(request.Note)
		request.Resolution = utils.SanitizeInput(request.Resolution)

		actor := lifecycle.Actor{
			ID:               user.ID,
			Role:             lifecycle.Role(user.Role),
			ProviderApproved: user.IsApprovedProvider(),
		}

		booking, effects, err := c.engine.Apply(ctx.Request().Context(), bookingID, event, actor, request)
		if err != nil {
			return writeLifecycleError(ctx, err)
		}

		c.settle(booking, event)
		go c.dispatcher.Dispatch(context.Background(), booking, effects)

		return ctx.JSON(http.StatusOK, models.BookingResponse{
			Status:  http.StatusOK,
			Message: fmt.Sprintf("Booking %s", booking.Status),
			Data:    booking,
		})
	}
}

// settle runs the money-movement side effects of events that end the paid
// phase of a booking.
func (c *BookingController) settle(booking *models.Booking, event lifecycle.Event) {
	switch event {
	case lifecycle.EventPayCash:
		services.RecordPayment(c.db, booking, "cash", "")
	case lifecycle.EventConfirmReceipt:
		c.creditProvider(booking)
	case lifecycle.EventResolveDispute:
		// Refunds on resolution are platform-borne; the provider is still
		// credited when the job ends as completed.
		if booking.Status == string(lifecycle.StatusCompleted) {
			c.creditProvider(booking)
		}
	}
}

func (c *BookingController) creditProvider(booking *models.Booking) {
	if booking.ProviderID == nil {
		return
	}
	earnings, err := lifecycle.ProviderEarnings(booking.BasePrice(), booking.ApprovedCharges())
	if err != nil {
		log.Printf("Failed to compute earnings for booking %s: %v", booking.ID.Hex(), err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.users.CreditEarnings(ctx, *booking.ProviderID, earnings); err != nil {
		log.Printf("Failed to credit provider %s: %v", booking.ProviderID.Hex(), err)
	}
}

// ProposeCharge lets the provider add a surcharge while the job is active
func (c *BookingController) ProposeCharge(ctx echo.Context) error {
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

	var request models.ChargeRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if err := c.validate.Struct(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Validation failed: %v", err),
		})
	}

	actor := lifecycle.Actor{
		ID:               user.ID,
		Role:             lifecycle.Role(user.Role),
		ProviderApproved: user.IsApprovedProvider(),
	}

	booking, effects, err := c.engine.ProposeCharge(ctx.Request().Context(), bookingID, actor,
		utils.SanitizeInput(request.Reason), request.Amount)
	if err != nil {
		return writeLifecycleError(ctx, err)
	}

	go c.dispatcher.Dispatch(context.Background(), booking, effects)

	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: "Additional charge proposed",
		Data:    booking,
	})
}

// ReviewCharge lets the client approve or reject a proposed surcharge
func (c *BookingController) ReviewCharge(ctx echo.Context) error {
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
	chargeID := ctx.Param("chargeId")

	var request models.ChargeReviewRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}

	actor := lifecycle.Actor{ID: user.ID, Role: lifecycle.Role(user.Role)}

	booking, effects, err := c.engine.ReviewCharge(ctx.Request().Context(), bookingID, actor, chargeID, request.Approve)
	if err != nil {
		return writeLifecycleError(ctx, err)
	}

	go c.dispatcher.Dispatch(context.Background(), booking, effects)

	verdict := "rejected"
	if request.Approve {
		verdict = "approved"
	}
	return ctx.JSON(http.StatusOK, models.BookingResponse{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("Additional charge %s", verdict),
		Data:    booking,
	})
}

func (c *BookingController) canView(user *models.User, booking *models.Booking) bool {
	if user.Role == models.RoleAdmin {
		return true
	}
	if booking.ClientID == user.ID {
		return true
	}
	return booking.ProviderID != nil && *booking.ProviderID == user.ID
}

// writeLifecycleError maps engine errors onto HTTP statuses
func writeLifecycleError(ctx echo.Context, err error) error {
	switch e := err.(type) {
	case *lifecycle.ValidationError:
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: e.Error(),
		})
	case *lifecycle.PermissionError:
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: e.Error(),
		})
	case *lifecycle.StaleStateError:
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: e.Error(),
		})
	case *lifecycle.GatewayError:
		log.Printf("Gateway failure during transition: %v", e)
		return ctx.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: "Payment gateway is unavailable, please try again",
		})
	default:
		log.Printf("Booking transition failed: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Internal server error",
		})
	}
}

// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles
const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// Provider statuses. A provider only receives bookings while approved;
// suspension blocks new assignments but leaves in-flight bookings running.
const (
	ProviderPending   = "pending"
	ProviderApproved  = "approved"
	ProviderSuspended = "suspended"
	ProviderRejected  = "rejected"
)

// User model
type User struct {
	ID                  primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email               string             `json:"email" bson:"email"`
	Password            string             `json:"password,omitempty" bson:"password"`
	FullName            string             `json:"fullName" bson:"fullName"`
	Role                string             `json:"role" bson:"role"`
	Phone               string             `json:"phone,omitempty" bson:"phone,omitempty"`
	IsActive            bool               `json:"isActive" bson:"isActive"`
	PhoneVerified       bool               `json:"phoneVerified,omitempty" bson:"phoneVerified,omitempty"`
	ProfilePic          string             `json:"profilePic,omitempty" bson:"profilePic,omitempty"`
	Location            *GeoPoint          `json:"location,omitempty" bson:"location,omitempty"`
	Address             string             `json:"address,omitempty" bson:"address,omitempty"`
	OTPInfo             *OTPInfo           `json:"otpInfo,omitempty" bson:"otpInfo,omitempty"`
	ResetPasswordToken  string             `json:"resetPasswordToken,omitempty" bson:"resetPasswordToken,omitempty"`
	ResetTokenExpiresAt time.Time          `json:"resetTokenExpiresAt,omitempty" bson:"resetTokenExpiresAt,omitempty"`
	GoogleID            string             `json:"googleId,omitempty" bson:"googleId,omitempty"`
	FCMToken            string             `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	LastActivityAt      time.Time          `json:"lastActivityAt" bson:"lastActivityAt"`
	ProviderInfo        *ProviderInfo      `json:"providerInfo,omitempty" bson:"providerInfo,omitempty"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ProviderInfo holds the provider-only part of a user record.
type ProviderInfo struct {
	ServiceType       string         `json:"serviceType" bson:"serviceType"`
	Description       string         `json:"description,omitempty" bson:"description,omitempty"`
	FixedPrice        float64        `json:"fixedPrice,omitempty" bson:"fixedPrice,omitempty"`
	Status            string         `json:"status" bson:"status"` // "pending", "approved", "suspended", "rejected"
	SuspensionReason  string         `json:"suspensionReason,omitempty" bson:"suspensionReason,omitempty"`
	SuspendedAt       *time.Time     `json:"suspendedAt,omitempty" bson:"suspendedAt,omitempty"`
	RejectionReason   string         `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	Rating            float64        `json:"rating" bson:"rating"`
	RatingCount       int            `json:"ratingCount" bson:"ratingCount"`
	CertificateImages []string       `json:"certificateImages,omitempty" bson:"certificateImages,omitempty"`
	PayoutAccount     *PayoutAccount `json:"payoutAccount,omitempty" bson:"payoutAccount,omitempty"`
	TotalEarnings     float64        `json:"totalEarnings" bson:"totalEarnings"`
	TotalWithdrawn    float64        `json:"totalWithdrawn" bson:"totalWithdrawn"`
	PendingWithdrawal float64        `json:"pendingWithdrawal" bson:"pendingWithdrawal"`
}

// PayoutAccount is the e-wallet the platform pays provider earnings into.
type PayoutAccount struct {
	Method        string `json:"method" bson:"method"` // "gcash", "maya"
	AccountNumber string `json:"accountNumber" bson:"accountNumber"`
	AccountName   string `json:"accountName" bson:"accountName"`
}

// IsApprovedProvider reports whether this user can be assigned bookings and
// act on them.
func (u *User) IsApprovedProvider() bool {
	return u.Role == RoleProvider && u.ProviderInfo != nil && u.ProviderInfo.Status == ProviderApproved
}

type OTPInfo struct {
	OTP       string    `json:"otp" bson:"otp"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}

// AuthRequest models
type LoginRequest struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type SignupRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FullName    string  `json:"fullName" validate:"required"`
	Phone       string  `json:"phone" validate:"required"`
	Role        string  `json:"role" validate:"required,oneof=client provider"`
	ServiceType string  `json:"serviceType,omitempty"`
	FixedPrice  float64 `json:"fixedPrice,omitempty"`
	Description string  `json:"description,omitempty"`
}

// GoogleAuthRequest is the model for Google sign-in
type GoogleAuthRequest struct {
	TokenID  string `json:"tokenId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
	GoogleID string `json:"googleId"`
}

type PayoutAccountRequest struct {
	Method        string `json:"method" validate:"required,oneof=gcash maya"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	AccountName   string `json:"accountName" validate:"required"`
}

type FCMTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Review model. Created once a booking reaches completed.
type Review struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID  primitive.ObjectID `json:"bookingId" bson:"bookingId"`
	ProviderID primitive.ObjectID `json:"providerId" bson:"providerId"`
	ClientID   primitive.ObjectID `json:"clientId" bson:"clientId"`
	Rating     int                `json:"rating" bson:"rating"`
	Comment    string             `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// ReviewRequest is the model for creating a review
type ReviewRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}

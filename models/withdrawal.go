package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
	WithdrawalPaid     = "paid"
)

// Withdrawal is a provider request to pay out accumulated earnings to
// their e-wallet account.
type Withdrawal struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ProviderID      primitive.ObjectID  `bson:"providerId" json:"providerId"`
	Amount          float64             `bson:"amount" json:"amount"`
	Method          string              `bson:"method" json:"method"` // "gcash" or "maya"
	AccountNumber   string              `bson:"accountNumber" json:"accountNumber"`
	AccountName     string              `bson:"accountName" json:"accountName"`
	Status          string              `bson:"status" json:"status"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	ProcessedAt     *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	AdminID         *primitive.ObjectID `bson:"adminId,omitempty" json:"adminId,omitempty"`
	AdminNote       string              `bson:"adminNote,omitempty" json:"adminNote,omitempty"`
	ProviderNote    string              `bson:"providerNote,omitempty" json:"providerNote,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	PayoutRef       string              `bson:"payoutRef,omitempty" json:"payoutRef,omitempty"`
}

// WithdrawalRequest is the provider-facing request body.
type WithdrawalRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Note   string  `json:"note,omitempty"`
}

// WithdrawalReviewRequest is the admin decision on a pending withdrawal.
type WithdrawalReviewRequest struct {
	Approve   bool   `json:"approve"`
	Note      string `json:"note,omitempty"`
	Reason    string `json:"reason,omitempty"`
	PayoutRef string `json:"payoutRef,omitempty"`
}

// EarningsSummary aggregates a provider's booking income.
type EarningsSummary struct {
	TotalEarnings     float64 `json:"totalEarnings"`
	TotalWithdrawn    float64 `json:"totalWithdrawn"`
	PendingWithdrawal float64 `json:"pendingWithdrawal"`
	AvailableBalance  float64 `json:"availableBalance"`
	CompletedBookings int64   `json:"completedBookings"`
}

// Package lifecycle owns the booking status workflow: the transition table,
// role guards, fee math and the engine that applies transitions against the
// document store with optimistic concurrency.
package lifecycle

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending            Status = "pending"
	StatusPendingNegotiation Status = "pending_negotiation"
	StatusCounterOffer       Status = "counter_offer"
	StatusAccepted           Status = "accepted"
	StatusInProgress         Status = "in_progress"
	StatusPendingCompletion  Status = "pending_completion"
	StatusPendingPayment     Status = "pending_payment"
	StatusPaymentReceived    Status = "payment_received"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
	StatusRejected           Status = "rejected"
	StatusDeclined           Status = "declined"
	StatusDisputed           Status = "disputed"
)

// IsTerminal reports whether no further transitions leave this status.
// Disputed is frozen but not terminal: admin resolution still moves it.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusDeclined:
		return true
	}
	return false
}

// IsActive reports whether the job is underway, which is the window where
// additional charges may be proposed.
func (s Status) IsActive() bool {
	switch s {
	case StatusAccepted, StatusInProgress, StatusPendingCompletion:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPendingNegotiation, StatusCounterOffer,
		StatusAccepted, StatusInProgress, StatusPendingCompletion,
		StatusPendingPayment, StatusPaymentReceived, StatusCompleted,
		StatusCancelled, StatusRejected, StatusDeclined, StatusDisputed:
		return true
	}
	return false
}

// Event names a requested transition.
type Event string

const (
	EventAdminApprove      Event = "admin_approve"
	EventAdminReject       Event = "admin_reject"
	EventCancel            Event = "cancel"
	EventAccept            Event = "accept"
	EventDecline           Event = "decline"
	EventOffer             Event = "offer"
	EventCounter           Event = "counter"
	EventAcceptCounter     Event = "accept_counter"
	EventStart             Event = "start"
	EventMarkComplete      Event = "mark_complete"
	EventConfirmCompletion Event = "confirm_completion"
	EventPayCash           Event = "pay_cash"
	EventPaymentConfirmed  Event = "payment_confirmed"
	EventConfirmReceipt    Event = "confirm_receipt"
	EventDispute           Event = "dispute"
	EventResolveDispute    Event = "resolve_dispute"
	EventRefund            Event = "refund"
)

// ParseEvent maps a wire string to an Event.
func ParseEvent(s string) (Event, bool) {
	e := Event(s)
	if _, ok := rules[e]; ok {
		return e, true
	}
	return "", false
}

// Role is the kind of actor requesting a transition. RoleSystem is the
// payment webhook path, which is authenticated out of band.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

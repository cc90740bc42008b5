package lifecycle

// rule is one row of the transition table. A transition is legal when the
// booking sits in one of From, the actor's role is in Actors, and the extra
// preconditions hold. Ownership and per-role special cases live in guard.go.
type rule struct {
	From            []Status
	To              Status
	Actors          []Role
	NeedsApproval   *bool // adminApproved precondition, nil means don't care
	NeedsNegotiable bool
	NeedsReason     bool
	NeedsAmount     bool
}

func boolPtr(v bool) *bool { return &v }

// nonTerminal lists every status cancel and dispute can leave from.
// Disputed itself is excluded: once disputed only admin resolution moves it.
var nonTerminal = []Status{
	StatusPending, StatusPendingNegotiation, StatusCounterOffer,
	StatusAccepted, StatusInProgress, StatusPendingCompletion,
	StatusPendingPayment, StatusPaymentReceived,
}

var rules = map[Event]rule{
	EventAdminApprove: {
		From:          []Status{StatusPending},
		To:            StatusPending,
		Actors:        []Role{RoleAdmin},
		NeedsApproval: boolPtr(false),
	},
	EventAdminReject: {
		From:          []Status{StatusPending},
		To:            StatusRejected,
		Actors:        []Role{RoleAdmin},
		NeedsApproval: boolPtr(false),
	},
	EventCancel: {
		From:        nonTerminal,
		To:          StatusCancelled,
		Actors:      []Role{RoleClient, RoleAdmin},
		NeedsReason: true,
	},
	EventAccept: {
		From:          []Status{StatusPending},
		To:            StatusAccepted,
		Actors:        []Role{RoleProvider},
		NeedsApproval: boolPtr(true),
	},
	EventDecline: {
		From:          []Status{StatusPending},
		To:            StatusDeclined,
		Actors:        []Role{RoleProvider},
		NeedsApproval: boolPtr(true),
	},
	EventOffer: {
		From:            []Status{StatusPending, StatusCounterOffer},
		To:              StatusPendingNegotiation,
		Actors:          []Role{RoleClient},
		NeedsApproval:   boolPtr(true),
		NeedsNegotiable: true,
		NeedsAmount:     true,
	},
	EventCounter: {
		From:            []Status{StatusPendingNegotiation},
		To:              StatusCounterOffer,
		Actors:          []Role{RoleProvider},
		NeedsNegotiable: true,
		NeedsAmount:     true,
	},
	EventAcceptCounter: {
		From:   []Status{StatusCounterOffer},
		To:     StatusPending,
		Actors: []Role{RoleClient},
	},
	EventStart: {
		From:   []Status{StatusAccepted},
		To:     StatusInProgress,
		Actors: []Role{RoleProvider},
	},
	EventMarkComplete: {
		From:   []Status{StatusInProgress},
		To:     StatusPendingCompletion,
		Actors: []Role{RoleProvider},
	},
	EventConfirmCompletion: {
		From:   []Status{StatusPendingCompletion},
		To:     StatusPendingPayment,
		Actors: []Role{RoleClient},
	},
	EventPayCash: {
		From:   []Status{StatusPendingPayment},
		To:     StatusPaymentReceived,
		Actors: []Role{RoleClient},
	},
	EventPaymentConfirmed: {
		From:   []Status{StatusPendingPayment},
		To:     StatusPaymentReceived,
		Actors: []Role{RoleSystem},
	},
	EventConfirmReceipt: {
		From:   []Status{StatusPaymentReceived},
		To:     StatusCompleted,
		Actors: []Role{RoleProvider},
	},
	EventDispute: {
		From:        nonTerminal,
		To:          StatusDisputed,
		Actors:      []Role{RoleClient, RoleProvider},
		NeedsReason: true,
	},
	EventResolveDispute: {
		From:   []Status{StatusDisputed},
		To:     StatusCompleted,
		Actors: []Role{RoleAdmin},
	},
	EventRefund: {
		From:   []Status{StatusCancelled},
		To:     StatusCancelled,
		Actors: []Role{RoleAdmin},
	},
}

func (r rule) allowsFrom(s Status) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

func (r rule) allowsRole(role Role) bool {
	for _, a := range r.Actors {
		if a == role {
			return true
		}
	}
	return false
}

// Next returns the target status of event from the given status, or false if
// the transition table has no such edge.
func Next(from Status, event Event) (Status, bool) {
	r, ok := rules[event]
	if !ok || !r.allowsFrom(from) {
		return "", false
	}
	return r.To, true
}

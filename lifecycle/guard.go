package lifecycle

import (
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the identity attempting a transition.
type Actor struct {
	ID               primitive.ObjectID
	Role             Role
	ProviderApproved bool
}

// SystemActor is the actor for webhook-driven transitions.
var SystemActor = Actor{Role: RoleSystem}

// CanTransition checks the transition table, role ownership and the
// per-event preconditions. A nil return means the transition is allowed.
func CanTransition(b *models.Booking, actor Actor, event Event) error {
	r, ok := rules[event]
	if !ok {
		return &ValidationError{Reason: "unknown event " + string(event)}
	}

	status := Status(b.Status)
	if !r.allowsFrom(status) {
		return &PermissionError{
			Event:  event,
			Role:   actor.Role,
			Reason: "booking is " + b.Status,
		}
	}
	if r.NeedsApproval != nil && b.AdminApproved != *r.NeedsApproval {
		if *r.NeedsApproval {
			return &PermissionError{Event: event, Role: actor.Role, Reason: "booking is awaiting admin approval"}
		}
		return &PermissionError{Event: event, Role: actor.Role, Reason: "booking is already admin approved"}
	}
	if r.NeedsNegotiable && !b.IsNegotiable {
		return &PermissionError{Event: event, Role: actor.Role, Reason: "booking is not negotiable"}
	}

	if !r.allowsRole(actor.Role) {
		return &PermissionError{Event: event, Role: actor.Role, Reason: "requires one of " + roleList(r.Actors)}
	}

	switch actor.Role {
	case RoleClient:
		if actor.ID != b.ClientID {
			return &PermissionError{Event: event, Role: actor.Role, Reason: "only the booking's client may do this"}
		}
		// Clients can only walk away early; later stages cancel through
		// dispute or admin.
		if event == EventCancel && status != StatusPending && status != StatusPendingNegotiation {
			return &PermissionError{Event: event, Role: actor.Role, Reason: "clients may only cancel while pending or negotiating"}
		}
	case RoleProvider:
		if b.ProviderID == nil || actor.ID != *b.ProviderID {
			return &PermissionError{Event: event, Role: actor.Role, Reason: "only the assigned provider may do this"}
		}
		if !actor.ProviderApproved {
			return &PermissionError{Event: event, Role: actor.Role, Reason: "provider account is not approved"}
		}
	case RoleAdmin, RoleSystem:
		// table already restricts which events these roles reach
	default:
		return &PermissionError{Event: event, Role: actor.Role, Reason: "unknown role"}
	}

	if event == EventRefund && b.Refunded {
		return &PermissionError{Event: event, Role: actor.Role, Reason: "booking was already refunded"}
	}

	return nil
}

func roleList(roles []Role) string {
	s := ""
	for i, r := range roles {
		if i > 0 {
			s += ", "
		}
		s += string(r)
	}
	return s
}

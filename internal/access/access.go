// Package access decides what an authenticated account may do to a resource.
// Decisions come from a closed rule table, so every (role, operation) pair has
// exactly one answer.
package access

import (
	"fmt"

	"github.com/diagnosis/roombook/internal/domain"
)

type Operation string

const (
	BookingRead      Operation = "booking.read"
	BookingUpdate    Operation = "booking.update"
	BookingDelete    Operation = "booking.delete"
	BookingList      Operation = "booking.list"
	BookingAdminView Operation = "booking.admin_view"
	AuditView        Operation = "audit.view"
	UserList         Operation = "user.list"
)

// Operations lists every operation the table covers.
var Operations = []Operation{
	BookingRead, BookingUpdate, BookingDelete, BookingList,
	BookingAdminView, AuditView, UserList,
}

type Decision int

const (
	Deny Decision = iota
	AllowOwnOnly
	AllowFull
)

func (d Decision) String() string {
	switch d {
	case AllowFull:
		return "ALLOW-FULL"
	case AllowOwnOnly:
		return "ALLOW-OWN-ONLY"
	default:
		return "DENY"
	}
}

type Actor struct {
	ID   int64
	Role domain.Role
}

func ActorOf(acc *domain.Account) Actor {
	return Actor{ID: acc.ID, Role: acc.Role}
}

var rules = map[domain.Role]map[Operation]Decision{
	domain.RoleSuperadmin: {
		BookingRead:      AllowFull,
		BookingUpdate:    AllowFull,
		BookingDelete:    AllowFull,
		BookingList:      AllowFull,
		BookingAdminView: AllowFull,
		AuditView:        AllowFull,
		UserList:         AllowFull,
	},
	domain.RoleAdmin: {
		BookingRead:      AllowFull,
		BookingUpdate:    AllowFull,
		BookingDelete:    AllowFull,
		BookingList:      AllowFull,
		BookingAdminView: AllowFull,
		AuditView:        Deny,
		UserList:         Deny,
	},
	domain.RoleUser: {
		BookingRead:      AllowOwnOnly,
		BookingUpdate:    AllowOwnOnly,
		BookingDelete:    AllowOwnOnly,
		BookingList:      AllowOwnOnly,
		BookingAdminView: Deny,
		AuditView:        Deny,
		UserList:         Deny,
	},
}

// Rule is the raw table entry, before any ownership check. Unknown roles and
// operations are denied.
func Rule(role domain.Role, op Operation) Decision {
	return rules[role][op]
}

// Evaluate applies the rule for actor and op to a resource owned by ownerID.
// AllowOwnOnly survives only when the actor owns the resource.
func Evaluate(actor Actor, op Operation, ownerID int64) Decision {
	d := Rule(actor.Role, op)
	if d == AllowOwnOnly && ownerID != actor.ID {
		return Deny
	}
	return d
}

// Authorize is Evaluate returning domain.ErrPermissionDenied on Deny.
// Callers check existence first so a missing resource reads as not found.
func Authorize(actor Actor, op Operation, ownerID int64) (Decision, error) {
	d := Evaluate(actor, op, ownerID)
	if d == Deny {
		return Deny, fmt.Errorf("%w: %s not allowed for role %s", domain.ErrPermissionDenied, op, actor.Role)
	}
	return d, nil
}

// MutableFields is the set of booking fields a decision may change.
// Nil means every field.
func MutableFields(d Decision) map[string]bool {
	if d == AllowOwnOnly {
		return domain.OwnerMutableFields
	}
	return nil
}

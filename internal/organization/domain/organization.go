// Package domain holds the Organization aggregate: the org record, its
// embedded member entries, and the seat ledger evaluated against it.
package domain

import (
	"errors"
	"time"
)

// MaxSeatsLimit is the hard upper bound on purchased seats for any plan.
const MaxSeatsLimit = 50

// Org is the tenant aggregate root. Members is the full append-only member
// list; all consistency-critical mutation goes through the aggregate's
// transaction boundary.
type Org struct {
	ID                    string
	OwnerID               string
	Name                  string
	Plan                  Plan
	MaxSeats              int
	SubscriptionStatus    string
	SubscriptionExpiresAt *time.Time
	Members               []Member
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
)

// PricePerSeatCents returns the per-seat price in cents for the plan.
func PricePerSeatCents(p Plan) int64 {
	switch p {
	case PlanProfessional:
		return 9900
	default:
		return 4900
	}
}

// Member is a user's standing within one organization. Entries are never
// deleted; removal flips Status and re-invitation reactivates the entry.
type Member struct {
	ID        string
	UserID    string
	Role      MemberRole
	Status    MemberStatus
	JoinedAt  time.Time
	RemovedAt *time.Time
}

type MemberRole string

const (
	MemberRoleAdmin    MemberRole = "admin"
	MemberRoleAttorney MemberRole = "attorney"
)

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusPending MemberStatus = "pending"
	MemberStatusRemoved MemberStatus = "removed"
)

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if o.OwnerID == "" {
		return errors.New("owner is required")
	}
	if o.Plan != PlanStarter && o.Plan != PlanProfessional {
		return errors.New("plan must be starter or professional")
	}
	if o.MaxSeats < 1 || o.MaxSeats > MaxSeatsLimit {
		return errors.New("max seats must be between 1 and 50")
	}
	return nil
}

// FindMember returns the member entry for userID regardless of status, or nil.
func (o *Org) FindMember(userID string) *Member {
	for i := range o.Members {
		if o.Members[i].UserID == userID {
			return &o.Members[i]
		}
	}
	return nil
}

// ActiveMember returns the member entry for userID if it is active, or nil.
func (o *Org) ActiveMember(userID string) *Member {
	m := o.FindMember(userID)
	if m == nil || m.Status != MemberStatusActive {
		return nil
	}
	return m
}

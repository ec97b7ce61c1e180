package repository

import (
	"context"
	"time"

	"firmdesk/backend/internal/organization/domain"
)

// Repository defines persistence for the Organization aggregate and its
// embedded member entries.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Org, error)
	// GetByIDForUpdate loads the aggregate with the organization row locked.
	// Must be called inside a transaction; the lock serializes all membership
	// mutations against the same organization until commit or rollback.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Org, error)
	Create(ctx context.Context, o *domain.Org) error
	AppendMember(ctx context.Context, orgID string, m *domain.Member) error
	// ReactivateMember flips an existing entry back to active, refreshing
	// joined_at and clearing removed_at.
	ReactivateMember(ctx context.Context, memberID string, role domain.MemberRole, at time.Time) error
	MarkMemberRemoved(ctx context.Context, memberID string, at time.Time) error
	// IncreaseMaxSeats atomically adds delta to max_seats when the result
	// stays within limit. Returns the new max_seats and true, or 0 and false
	// when the limit would be exceeded or the org does not exist.
	IncreaseMaxSeats(ctx context.Context, orgID string, delta, limit int) (int, bool, error)
	ListActiveMembers(ctx context.Context, orgID string) ([]*domain.Member, error)
}

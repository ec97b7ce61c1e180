package repository

import (
	"context"
	"time"

	"firmdesk/backend/internal/invitation/domain"
)

// Repository defines persistence for invitations. The Mark methods are
// conditional single-row updates: they only apply to pending, unexpired
// invitations, which makes the pending-to-terminal transition one-way even
// under concurrent calls.
type Repository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	GetByToken(ctx context.Context, token string) (*domain.Invitation, error)
	// MarkAccepted transitions pending -> accepted, recording the accepting
	// user and timestamp. Returns false when the invitation was not pending
	// or already expired.
	MarkAccepted(ctx context.Context, token, userID string, at time.Time) (bool, error)
	// MarkRejected transitions pending -> rejected. Returns false when the
	// invitation was not pending or already expired.
	MarkRejected(ctx context.Context, token string, at time.Time) (bool, error)
	ListPendingByOrg(ctx context.Context, orgID string) ([]*domain.Invitation, error)
}

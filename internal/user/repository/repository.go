package repository

import (
	"context"

	"firmdesk/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// SetOrganization points the user at an organization and sets the role it
	// holds there. Must run in the same transaction as the member-entry write.
	SetOrganization(ctx context.Context, userID, orgID string, role domain.Role) error
	// ClearOrganization detaches the user from its organization.
	ClearOrganization(ctx context.Context, userID string) error
}

package repository

import (
	"context"

	"firmdesk/backend/internal/cases/domain"
)

// Repository defines persistence for case-ownership records.
type Repository interface {
	// ListReferencing returns refs of non-deleted cases in the org where
	// userID appears in any ownership field. Used for the advisory
	// post-removal scan; best-effort, read-only.
	ListReferencing(ctx context.Context, orgID, userID string) ([]*domain.Ref, error)
	// GetManyForUpdate loads the given cases scoped to the org, excluding
	// soft-deleted ones, with rows locked. Must be called inside a
	// transaction. Unknown ids are silently absent from the result.
	GetManyForUpdate(ctx context.Context, orgID string, ids []string) ([]*domain.Case, error)
	// UpdateOwnership persists the ownership fields of the case, replacing
	// the team-member list.
	UpdateOwnership(ctx context.Context, c *domain.Case) error
	AppendActivity(ctx context.Context, a *domain.Activity) error
}

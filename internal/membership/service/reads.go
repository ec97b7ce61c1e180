package service

import (
	"context"

	invitationdomain "firmdesk/backend/internal/invitation/domain"
	orgdomain "firmdesk/backend/internal/organization/domain"
	userdomain "firmdesk/backend/internal/user/domain"
)

// OrganizationView is an Org snapshot plus derived seat usage.
type OrganizationView struct {
	Org            *orgdomain.Org
	ActiveMembers  int
	SeatsRemaining int
}

// GetOrganization returns the actor's organization with seat usage. Any
// active member may read it.
func (s *MembershipService) GetOrganization(ctx context.Context, actorID string) (*OrganizationView, error) {
	_, orgID, err := s.requireMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotAuthorized
	}
	return &OrganizationView{
		Org:            org,
		ActiveMembers:  orgdomain.ActiveCount(org),
		SeatsRemaining: orgdomain.SeatsRemaining(org),
	}, nil
}

// ListActiveMembers returns the active member entries of the actor's
// organization.
func (s *MembershipService) ListActiveMembers(ctx context.Context, actorID string) ([]*orgdomain.Member, error) {
	_, orgID, err := s.requireMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.orgRepo.ListActiveMembers(ctx, orgID)
}

// ListPendingInvitations returns pending, unexpired invitations for the
// actor's organization. Admin only.
func (s *MembershipService) ListPendingInvitations(ctx context.Context, actorID string) ([]*invitationdomain.Invitation, error) {
	_, orgID, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.inviteRepo.ListPendingByOrg(ctx, orgID)
}

// requireMember resolves actorID to a user affiliated with an organization.
func (s *MembershipService) requireMember(ctx context.Context, actorID string) (*userdomain.User, string, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	if actor == nil || actor.OrganizationID == nil {
		return nil, "", ErrNotAuthorized
	}
	return actor, *actor.OrganizationID, nil
}

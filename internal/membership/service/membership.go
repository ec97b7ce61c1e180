package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	invitationdomain "firmdesk/backend/internal/invitation/domain"
	"firmdesk/backend/internal/notification"
	orgdomain "firmdesk/backend/internal/organization/domain"
	"firmdesk/backend/internal/security"
	userdomain "firmdesk/backend/internal/user/domain"
)

// InviteResult reports the outcome of a direct invite.
type InviteResult struct {
	UserID         string
	Email          string
	AccountCreated bool
}

// RemoveResult reports a removal plus the advisory list of cases still
// referencing the removed member.
type RemoveResult struct {
	RemovedUserID            string
	CasesNeedingReassignment []*caseRef
}

type caseRef struct {
	ID         string `json:"id"`
	CaseNumber string `json:"case_number"`
	Title      string `json:"title"`
}

// InviteMember adds the user with the given email to the actor's organization
// immediately, consuming a seat. If no account exists for the email one is
// created with a generated password, delivered out-of-band. Re-inviting a
// previously removed member reactivates the existing member entry.
func (s *MembershipService) InviteMember(ctx context.Context, actorID, email string) (*InviteResult, error) {
	_, orgID, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, userdomain.ErrInvalidEmail
	}

	var (
		result  InviteResult
		orgName string
		notify  *notification.Message
	)
	err = s.runAggregateTx(ctx, func(ctx context.Context) error {
		org, err := s.orgRepo.GetByIDForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return ErrNotAuthorized
		}
		orgName = org.Name
		// Capacity is checked before anything else, so a full organization
		// reports SeatsExhausted regardless of who the invitee is.
		if !orgdomain.HasCapacity(org) {
			return ErrSeatsExhausted
		}

		invitee, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if invitee == nil {
			password, err := security.GeneratePassword()
			if err != nil {
				return err
			}
			hash, err := s.hasher.Hash([]byte(password))
			if err != nil {
				return err
			}
			invitee = &userdomain.User{
				ID:             uuid.New().String(),
				Email:          email,
				Name:           email,
				Role:           userdomain.RoleAttorney,
				OrganizationID: &orgID,
				PasswordHash:   hash,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.userRepo.Create(ctx, invitee); err != nil {
				return err
			}
			if err := s.orgRepo.AppendMember(ctx, orgID, &orgdomain.Member{
				ID:       uuid.New().String(),
				UserID:   invitee.ID,
				Role:     orgdomain.MemberRoleAttorney,
				Status:   orgdomain.MemberStatusActive,
				JoinedAt: now,
			}); err != nil {
				return err
			}
			result = InviteResult{UserID: invitee.ID, Email: invitee.Email, AccountCreated: true}
			notify = &notification.Message{
				Kind:         notification.KindAccountCreated,
				To:           invitee.Email,
				TempPassword: password,
			}
			return nil
		}

		if org.ActiveMember(invitee.ID) != nil {
			return ErrAlreadyMember
		}
		if invitee.OrganizationID != nil && *invitee.OrganizationID != orgID {
			return ErrForeignMember
		}
		// Joining members always start as attorney, including a previously
		// removed admin being re-invited. Admin standing does not survive
		// removal.
		if prior := org.FindMember(invitee.ID); prior != nil {
			if err := s.orgRepo.ReactivateMember(ctx, prior.ID, orgdomain.MemberRoleAttorney, now); err != nil {
				return err
			}
		} else {
			if err := s.orgRepo.AppendMember(ctx, orgID, &orgdomain.Member{
				ID:       uuid.New().String(),
				UserID:   invitee.ID,
				Role:     orgdomain.MemberRoleAttorney,
				Status:   orgdomain.MemberStatusActive,
				JoinedAt: now,
			}); err != nil {
				return err
			}
		}
		if err := s.userRepo.SetOrganization(ctx, invitee.ID, orgID, userdomain.RoleAttorney); err != nil {
			return err
		}
		result = InviteResult{UserID: invitee.ID, Email: invitee.Email}
		notify = &notification.Message{
			Kind: notification.KindAddedToFirm,
			To:   invitee.Email,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notify != nil {
		notify.OrgName = orgName
		notify.EnqueuedAt = time.Now().UTC()
		notification.SendAsync(s.notifier, notify)
	}
	s.logEvent(ctx, orgID, actorID, "member.invite", "user:"+result.UserID, `{"email":"`+result.Email+`"}`)
	return &result, nil
}

// IssueInvitation creates a pending token invitation for email in the actor's
// organization. No seat is consumed until the invitation is accepted.
func (s *MembershipService) IssueInvitation(ctx context.Context, actorID, email string) (*invitationdomain.Invitation, error) {
	_, orgID, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, userdomain.ErrInvalidEmail
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		org, err := s.orgRepo.GetByID(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if org != nil && org.ActiveMember(existing.ID) != nil {
			return nil, ErrAlreadyMember
		}
	}

	token, err := security.GenerateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := &invitationdomain.Invitation{
		Token:          token,
		OrganizationID: orgID,
		InvitedEmail:   email,
		Status:         invitationdomain.StatusPending,
		ExpiresAt:      now.Add(s.invitationTTL),
		CreatedAt:      now,
	}
	if err := s.inviteRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	notification.SendAsync(s.notifier, &notification.Message{
		Kind:        notification.KindInvitation,
		To:          email,
		InviteToken: token,
		EnqueuedAt:  now,
	})
	s.logEvent(ctx, orgID, actorID, "invitation.issue", "invitation:"+token, `{"email":"`+email+`"}`)
	return inv, nil
}

// AcceptInvitation redeems a pending invitation token for the acting user,
// consuming a seat. The actor's email must match the invited email and the
// actor must not already belong to an organization.
func (s *MembershipService) AcceptInvitation(ctx context.Context, actorID, token string) error {
	var (
		orgID      string
		orgName    string
		actorEmail string
	)
	err := s.runAggregateTx(ctx, func(ctx context.Context) error {
		// The actor is re-read on every attempt: the affiliation guard must
		// see any membership committed since the request started, including
		// between serialization-failure retries.
		actor, err := s.userRepo.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return ErrNotAuthorized
		}
		actorEmail = actor.Email

		inv, err := s.inviteRepo.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if inv == nil || inv.Status != invitationdomain.StatusPending || inv.Expired(now) {
			return ErrInvitationNotFound
		}
		if !strings.EqualFold(inv.InvitedEmail, actor.Email) {
			return ErrEmailMismatch
		}
		if actor.OrganizationID != nil {
			return ErrAlreadyAffiliated
		}

		org, err := s.orgRepo.GetByIDForUpdate(ctx, inv.OrganizationID)
		if err != nil {
			return err
		}
		if org == nil {
			return ErrInvitationNotFound
		}
		if !orgdomain.HasCapacity(org) {
			return ErrSeatsExhausted
		}
		orgID, orgName = org.ID, org.Name

		ok, err := s.inviteRepo.MarkAccepted(ctx, token, actor.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvitationNotFound
		}
		if prior := org.FindMember(actor.ID); prior != nil {
			if err := s.orgRepo.ReactivateMember(ctx, prior.ID, orgdomain.MemberRoleAttorney, now); err != nil {
				return err
			}
		} else {
			if err := s.orgRepo.AppendMember(ctx, org.ID, &orgdomain.Member{
				ID:       uuid.New().String(),
				UserID:   actor.ID,
				Role:     orgdomain.MemberRoleAttorney,
				Status:   orgdomain.MemberStatusActive,
				JoinedAt: now,
			}); err != nil {
				return err
			}
		}
		return s.userRepo.SetOrganization(ctx, actor.ID, org.ID, userdomain.RoleAttorney)
	})
	if err != nil {
		return err
	}

	notification.SendAsync(s.notifier, &notification.Message{
		Kind:       notification.KindAddedToFirm,
		To:         actorEmail,
		OrgName:    orgName,
		EnqueuedAt: time.Now().UTC(),
	})
	s.logEvent(ctx, orgID, actorID, "invitation.accept", "invitation:"+token, "")
	return nil
}

// RejectInvitation marks a pending invitation rejected. The token itself is
// the capability: any authenticated caller holding it may decline, without an
// email match. The transition is one-way; a rejected or expired token cannot
// be redeemed afterwards.
func (s *MembershipService) RejectInvitation(ctx context.Context, actorID, token string) error {
	ok, err := s.inviteRepo.MarkRejected(ctx, token, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvitationNotFound
	}
	orgID := ""
	if inv, err := s.inviteRepo.GetByToken(ctx, token); err == nil && inv != nil {
		orgID = inv.OrganizationID
	}
	s.logEvent(ctx, orgID, actorID, "invitation.reject", "invitation:"+token, "")
	return nil
}

// RemoveMember flips the target's member entry to removed, freeing a seat,
// and detaches the user from the organization. After commit it runs an
// advisory scan for cases still referencing the removed member; scan failure
// degrades to an empty list and never fails the removal.
func (s *MembershipService) RemoveMember(ctx context.Context, actorID, userID string) (*RemoveResult, error) {
	_, orgID, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if userID == actorID {
		return nil, ErrCannotRemoveSelf
	}

	err = s.runAggregateTx(ctx, func(ctx context.Context) error {
		org, err := s.orgRepo.GetByIDForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return ErrNotAuthorized
		}
		member := org.ActiveMember(userID)
		if member == nil {
			return ErrMemberNotFound
		}
		now := time.Now().UTC()
		if err := s.orgRepo.MarkMemberRemoved(ctx, member.ID, now); err != nil {
			return err
		}
		return s.userRepo.ClearOrganization(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	result := &RemoveResult{RemovedUserID: userID, CasesNeedingReassignment: []*caseRef{}}
	refs, err := s.caseRepo.ListReferencing(ctx, orgID, userID)
	if err != nil {
		log.Printf("membership: advisory case scan failed for user %s: %v", userID, err)
	} else {
		for _, r := range refs {
			result.CasesNeedingReassignment = append(result.CasesNeedingReassignment, &caseRef{
				ID:         r.ID,
				CaseNumber: r.CaseNumber,
				Title:      r.Title,
			})
		}
	}
	s.logEvent(ctx, orgID, actorID, "member.remove", "user:"+userID, "")
	return result, nil
}

// Package service orchestrates the organization membership lifecycle:
// invitations, acceptance, removal, and seat-capacity changes. Every mutation
// of one organization runs inside a transaction holding the organization row
// lock, so the seat invariant is checked against the state it commits over.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firmdesk/backend/internal/audit"
	casesdomain "firmdesk/backend/internal/cases/domain"
	"firmdesk/backend/internal/db"
	invitationdomain "firmdesk/backend/internal/invitation/domain"
	"firmdesk/backend/internal/notification"
	orgdomain "firmdesk/backend/internal/organization/domain"
	"firmdesk/backend/internal/payment"
	policyengine "firmdesk/backend/internal/policy/engine"
	"firmdesk/backend/internal/security"
	userdomain "firmdesk/backend/internal/user/domain"
)

// Sentinel errors for the membership service; the HTTP layer maps them to
// status codes. Only ErrTransientConflict is safe to retry unchanged.
var (
	ErrSeatsExhausted            = errors.New("no seats available; increase capacity or remove a member")
	ErrAlreadyMember             = errors.New("user is already an active member of this organization")
	ErrForeignMember             = errors.New("user belongs to a different organization")
	ErrInvitationNotFound        = errors.New("invitation not found, expired, or already processed")
	ErrEmailMismatch             = errors.New("accepting user's email does not match the invitation")
	ErrAlreadyAffiliated         = errors.New("user already belongs to an organization")
	ErrCannotRemoveSelf          = errors.New("administrators cannot remove themselves")
	ErrMemberNotFound            = errors.New("no active member entry for that user")
	ErrSeatCapExceeded           = errors.New("seat cap exceeded")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrTransientConflict         = errors.New("concurrent update on organization; retry")
	ErrNotAuthorized             = errors.New("actor is not an administrator of this organization")
)

// txAttempts bounds retries of serialization failures before surfacing
// ErrTransientConflict to the caller.
const txAttempts = 3

// OrgRepo is the minimal organization repository needed by the membership service.
type OrgRepo interface {
	GetByID(ctx context.Context, id string) (*orgdomain.Org, error)
	GetByIDForUpdate(ctx context.Context, id string) (*orgdomain.Org, error)
	AppendMember(ctx context.Context, orgID string, m *orgdomain.Member) error
	ReactivateMember(ctx context.Context, memberID string, role orgdomain.MemberRole, at time.Time) error
	MarkMemberRemoved(ctx context.Context, memberID string, at time.Time) error
	IncreaseMaxSeats(ctx context.Context, orgID string, delta, limit int) (int, bool, error)
	ListActiveMembers(ctx context.Context, orgID string) ([]*orgdomain.Member, error)
}

// UserRepo is the minimal user repository needed by the membership service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetOrganization(ctx context.Context, userID, orgID string, role userdomain.Role) error
	ClearOrganization(ctx context.Context, userID string) error
}

// InvitationRepo is the minimal invitation repository needed by the membership service.
type InvitationRepo interface {
	Create(ctx context.Context, inv *invitationdomain.Invitation) error
	GetByToken(ctx context.Context, token string) (*invitationdomain.Invitation, error)
	MarkAccepted(ctx context.Context, token, userID string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, token string, at time.Time) (bool, error)
	ListPendingByOrg(ctx context.Context, orgID string) ([]*invitationdomain.Invitation, error)
}

// CaseRepo is the read-only case access used for the advisory post-removal scan.
type CaseRepo interface {
	ListReferencing(ctx context.Context, orgID, userID string) ([]*casesdomain.Ref, error)
}

// MembershipService implements the membership lifecycle operations.
type MembershipService struct {
	tx            db.Runner
	orgRepo       OrgRepo
	userRepo      UserRepo
	inviteRepo    InvitationRepo
	caseRepo      CaseRepo
	verifier      payment.Verifier
	policy        policyengine.Evaluator
	notifier      notification.Notifier
	auditLog      audit.AuditLogger
	hasher        *security.Hasher
	invitationTTL time.Duration
}

// NewMembershipService returns a MembershipService with the given dependencies.
// notifier and auditLog may be nil; side effects are then skipped.
func NewMembershipService(
	tx db.Runner,
	orgRepo OrgRepo,
	userRepo UserRepo,
	inviteRepo InvitationRepo,
	caseRepo CaseRepo,
	verifier payment.Verifier,
	policy policyengine.Evaluator,
	notifier notification.Notifier,
	auditLog audit.AuditLogger,
	hasher *security.Hasher,
	invitationTTL time.Duration,
) *MembershipService {
	if invitationTTL <= 0 {
		invitationTTL = 168 * time.Hour
	}
	return &MembershipService{
		tx:            tx,
		orgRepo:       orgRepo,
		userRepo:      userRepo,
		inviteRepo:    inviteRepo,
		caseRepo:      caseRepo,
		verifier:      verifier,
		policy:        policy,
		notifier:      notifier,
		auditLog:      auditLog,
		hasher:        hasher,
		invitationTTL: invitationTTL,
	}
}

// requireAdmin resolves actorID to an admin user with an organization.
// Returns the user and its organization id.
func (s *MembershipService) requireAdmin(ctx context.Context, actorID string) (*userdomain.User, string, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	if actor == nil || actor.Role != userdomain.RoleAdmin || actor.OrganizationID == nil {
		return nil, "", ErrNotAuthorized
	}
	return actor, *actor.OrganizationID, nil
}

// runAggregateTx runs fn with bounded retries on serialization failures.
// Exhausted retries surface as ErrTransientConflict.
func (s *MembershipService) runAggregateTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < txAttempts; i++ {
		err = s.tx.RunInTx(ctx, fn)
		if err == nil || !db.IsSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w (%v)", ErrTransientConflict, err)
}

func (s *MembershipService) logEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if s.auditLog != nil {
		s.auditLog.LogEvent(ctx, orgID, userID, action, resource, metadata)
	}
}

// Package service rewrites case ownership from a removed member to an active
// one. It is the repair path for the advisory list produced by member
// removal, but accepts any source user.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	casesdomain "firmdesk/backend/internal/cases/domain"
	"firmdesk/backend/internal/db"
	orgdomain "firmdesk/backend/internal/organization/domain"
	userdomain "firmdesk/backend/internal/user/domain"
)

var (
	// ErrNotAuthorized mirrors the membership service: only org admins may
	// reassign cases.
	ErrNotAuthorized = errors.New("actor is not an administrator of this organization")
	// ErrTargetNotActiveMember rejects reassignment to users outside the
	// organization's active roster.
	ErrTargetNotActiveMember = errors.New("reassignment target is not an active member")
	// ErrTransientConflict reports a lost race with a concurrent case update.
	ErrTransientConflict = errors.New("concurrent update on cases; retry")
	// ErrNoCases rejects an empty case list.
	ErrNoCases = errors.New("at least one case id is required")
)

const txAttempts = 3

// OrgRepo is the minimal organization access needed for target validation.
type OrgRepo interface {
	GetByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// UserRepo resolves actors and target names.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// CaseRepo is the case persistence used by reassignment.
type CaseRepo interface {
	GetManyForUpdate(ctx context.Context, orgID string, ids []string) ([]*casesdomain.Case, error)
	UpdateOwnership(ctx context.Context, c *casesdomain.Case) error
	AppendActivity(ctx context.Context, a *casesdomain.Activity) error
}

// ReassignmentService rewrites ownership references on cases.
type ReassignmentService struct {
	tx       db.Runner
	orgRepo  OrgRepo
	userRepo UserRepo
	caseRepo CaseRepo
}

func NewReassignmentService(tx db.Runner, orgRepo OrgRepo, userRepo UserRepo, caseRepo CaseRepo) *ReassignmentService {
	return &ReassignmentService{tx: tx, orgRepo: orgRepo, userRepo: userRepo, caseRepo: caseRepo}
}

// Result reports which of the requested cases were actually modified.
type Result struct {
	RequestedCases int
	ModifiedCases  int
}

// ReassignCases rewrites every ownership reference to fromUserID on the given
// cases to toUserID. The target must be an active member of the actor's
// organization; the source need not be, since it is usually already removed.
// Case ids outside the organization or soft-deleted are skipped, and cases
// that do not reference fromUserID are left untouched, so retrying after a
// partial failure is safe.
func (s *ReassignmentService) ReassignCases(ctx context.Context, actorID, fromUserID, toUserID string, caseIDs []string) (*Result, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.Role != userdomain.RoleAdmin || actor.OrganizationID == nil {
		return nil, ErrNotAuthorized
	}
	orgID := *actor.OrganizationID
	if len(caseIDs) == 0 {
		return nil, ErrNoCases
	}

	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotAuthorized
	}
	if org.ActiveMember(toUserID) == nil {
		return nil, ErrTargetNotActiveMember
	}
	target, err := s.userRepo.GetByID(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	targetName := toUserID
	if target != nil && target.Name != "" {
		targetName = target.Name
	}

	result := &Result{RequestedCases: len(caseIDs)}
	run := func(ctx context.Context) error {
		result.ModifiedCases = 0
		// The target is re-validated inside the transaction so a removal
		// committed after the check above cannot receive cases.
		org, err := s.orgRepo.GetByID(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil || org.ActiveMember(toUserID) == nil {
			return ErrTargetNotActiveMember
		}
		cs, err := s.caseRepo.GetManyForUpdate(ctx, orgID, caseIDs)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, c := range cs {
			if !c.Reassign(fromUserID, toUserID) {
				continue
			}
			c.UpdatedAt = now
			if err := s.caseRepo.UpdateOwnership(ctx, c); err != nil {
				return err
			}
			if err := s.caseRepo.AppendActivity(ctx, &casesdomain.Activity{
				ID:        uuid.New().String(),
				CaseID:    c.ID,
				ActorID:   actorID,
				Action:    "ownership.reassigned",
				Note:      "case reassigned from removed member to " + targetName,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			result.ModifiedCases++
		}
		return nil
	}

	for i := 0; i < txAttempts; i++ {
		err = s.tx.RunInTx(ctx, run)
		if err == nil || !db.IsSerializationFailure(err) {
			break
		}
	}
	if err != nil {
		if db.IsSerializationFailure(err) {
			return nil, fmt.Errorf("%w (%v)", ErrTransientConflict, err)
		}
		return nil, err
	}
	return result, nil
}

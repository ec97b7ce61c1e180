package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	casesdomain "firmdesk/backend/internal/cases/domain"
	invitationdomain "firmdesk/backend/internal/invitation/domain"
	"firmdesk/backend/internal/notification"
	orgdomain "firmdesk/backend/internal/organization/domain"
	"firmdesk/backend/internal/payment"
	policyengine "firmdesk/backend/internal/policy/engine"
	"firmdesk/backend/internal/security"
	userdomain "firmdesk/backend/internal/user/domain"
)

// memTxRunner serializes transactions with a mutex, mimicking the row lock
// the real runner takes on the organization.
type memTxRunner struct {
	mu sync.Mutex
}

func (r *memTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

// hookTxRunner runs hook once before the first transaction body, simulating a
// write committed between the request starting and its transaction beginning.
type hookTxRunner struct {
	mu   sync.Mutex
	hook func()
}

func (r *hookTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hook != nil {
		h := r.hook
		r.hook = nil
		h()
	}
	return fn(ctx)
}

type memOrgRepo struct {
	mu   sync.Mutex
	orgs map[string]*orgdomain.Org
}

func (r *memOrgRepo) snapshot(id string) *orgdomain.Org {
	o, ok := r.orgs[id]
	if !ok {
		return nil
	}
	cp := *o
	cp.Members = append([]orgdomain.Member(nil), o.Members...)
	return &cp
}

func (r *memOrgRepo) GetByID(ctx context.Context, id string) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(id), nil
}

func (r *memOrgRepo) GetByIDForUpdate(ctx context.Context, id string) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(id), nil
}

func (r *memOrgRepo) AppendMember(ctx context.Context, orgID string, m *orgdomain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[orgID]
	if !ok {
		return errors.New("org not found")
	}
	o.Members = append(o.Members, *m)
	return nil
}

func (r *memOrgRepo) ReactivateMember(ctx context.Context, memberID string, role orgdomain.MemberRole, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		for i := range o.Members {
			if o.Members[i].ID == memberID {
				o.Members[i].Status = orgdomain.MemberStatusActive
				o.Members[i].Role = role
				o.Members[i].JoinedAt = at
				o.Members[i].RemovedAt = nil
				return nil
			}
		}
	}
	return errors.New("member not found")
}

func (r *memOrgRepo) MarkMemberRemoved(ctx context.Context, memberID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		for i := range o.Members {
			if o.Members[i].ID == memberID {
				o.Members[i].Status = orgdomain.MemberStatusRemoved
				t := at
				o.Members[i].RemovedAt = &t
				return nil
			}
		}
	}
	return errors.New("member not found")
}

func (r *memOrgRepo) IncreaseMaxSeats(ctx context.Context, orgID string, delta, limit int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[orgID]
	if !ok {
		return 0, false, nil
	}
	if o.MaxSeats+delta > limit {
		return 0, false, nil
	}
	o.MaxSeats += delta
	return o.MaxSeats, true, nil
}

func (r *memOrgRepo) ListActiveMembers(ctx context.Context, orgID string) ([]*orgdomain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[orgID]
	if !ok {
		return nil, nil
	}
	var out []*orgdomain.Member
	for i := range o.Members {
		if o.Members[i].Status == orgdomain.MemberStatusActive {
			m := o.Members[i]
			out = append(out, &m)
		}
	}
	return out, nil
}

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *memUserRepo) SetOrganization(ctx context.Context, userID, orgID string, role userdomain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return errors.New("user not found")
	}
	id := orgID
	u.OrganizationID = &id
	u.Role = role
	return nil
}

func (r *memUserRepo) ClearOrganization(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return errors.New("user not found")
	}
	u.OrganizationID = nil
	return nil
}

type memInvitationRepo struct {
	mu sync.Mutex
	m  map[string]*invitationdomain.Invitation
}

func (r *memInvitationRepo) Create(ctx context.Context, inv *invitationdomain.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.m[inv.Token] = &cp
	return nil
}

func (r *memInvitationRepo) GetByToken(ctx context.Context, token string) (*invitationdomain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.m[token]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvitationRepo) MarkAccepted(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.m[token]
	if !ok || inv.Status != invitationdomain.StatusPending || !inv.ExpiresAt.After(at) {
		return false, nil
	}
	inv.Status = invitationdomain.StatusAccepted
	uid := userID
	inv.InvitedUserID = &uid
	t := at
	inv.AcceptedAt = &t
	return true, nil
}

func (r *memInvitationRepo) MarkRejected(ctx context.Context, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.m[token]
	if !ok || inv.Status != invitationdomain.StatusPending || !inv.ExpiresAt.After(at) {
		return false, nil
	}
	inv.Status = invitationdomain.StatusRejected
	return true, nil
}

func (r *memInvitationRepo) ListPendingByOrg(ctx context.Context, orgID string) ([]*invitationdomain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []*invitationdomain.Invitation
	for _, inv := range r.m {
		if inv.OrganizationID == orgID && inv.Status == invitationdomain.StatusPending && inv.ExpiresAt.After(now) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memCaseRepo struct {
	refs []*casesdomain.Ref
	err  error
}

func (r *memCaseRepo) ListReferencing(ctx context.Context, orgID, userID string) ([]*casesdomain.Ref, error) {
	return r.refs, r.err
}

type fakeVerifier struct {
	p   *payment.Payment
	err error
}

func (v *fakeVerifier) Fetch(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return v.p, v.err
}

type fakePolicy struct {
	exempt bool
	err    error
}

func (p *fakePolicy) PaymentExempt(ctx context.Context, in policyengine.ExemptionInput) (bool, error) {
	return p.exempt, p.err
}

type recordingNotifier struct {
	ch chan *notification.Message
}

func (n *recordingNotifier) Enqueue(ctx context.Context, msg *notification.Message) error {
	n.ch <- msg
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

const (
	testOrgID   = "org-1"
	testAdminID = "user-admin"
)

type testFixture struct {
	svc      *MembershipService
	orgs     *memOrgRepo
	users    *memUserRepo
	invites  *memInvitationRepo
	cases    *memCaseRepo
	verifier *fakeVerifier
	policy   *fakePolicy
	notify   *recordingNotifier
}

// newTestFixture builds a service over an org with maxSeats seats whose owner
// admin occupies the first.
func newTestFixture(t *testing.T, maxSeats int) *testFixture {
	t.Helper()
	now := time.Now().UTC()
	orgID := testOrgID
	f := &testFixture{
		orgs: &memOrgRepo{orgs: map[string]*orgdomain.Org{
			testOrgID: {
				ID:                 testOrgID,
				OwnerID:            testAdminID,
				Name:               "Harvey & Associates",
				Plan:               orgdomain.PlanStarter,
				MaxSeats:           maxSeats,
				SubscriptionStatus: "active",
				Members: []orgdomain.Member{{
					ID:       "member-admin",
					UserID:   testAdminID,
					Role:     orgdomain.MemberRoleAdmin,
					Status:   orgdomain.MemberStatusActive,
					JoinedAt: now,
				}},
				CreatedAt: now,
				UpdatedAt: now,
			},
		}},
		users: &memUserRepo{byID: map[string]*userdomain.User{
			testAdminID: {
				ID:             testAdminID,
				Email:          "admin@example.com",
				Name:           "Admin",
				Role:           userdomain.RoleAdmin,
				OrganizationID: &orgID,
			},
		}},
		invites:  &memInvitationRepo{m: map[string]*invitationdomain.Invitation{}},
		cases:    &memCaseRepo{},
		verifier: &fakeVerifier{},
		policy:   &fakePolicy{},
		notify:   &recordingNotifier{ch: make(chan *notification.Message, 16)},
	}
	f.svc = NewMembershipService(
		&memTxRunner{}, f.orgs, f.users, f.invites, f.cases,
		f.verifier, f.policy, f.notify, nil,
		security.NewHasher(4), 7*24*time.Hour,
	)
	return f
}

// addMember registers a user and an active member entry, consuming a seat.
func (f *testFixture) addMember(t *testing.T, userID, email string) {
	t.Helper()
	orgID := testOrgID
	f.users.byID[userID] = &userdomain.User{
		ID:             userID,
		Email:          email,
		Name:           email,
		Role:           userdomain.RoleAttorney,
		OrganizationID: &orgID,
	}
	o := f.orgs.orgs[testOrgID]
	o.Members = append(o.Members, orgdomain.Member{
		ID:       "member-" + userID,
		UserID:   userID,
		Role:     orgdomain.MemberRoleAttorney,
		Status:   orgdomain.MemberStatusActive,
		JoinedAt: time.Now().UTC(),
	})
}

func activeCount(f *testFixture) int {
	o, _ := f.orgs.GetByID(context.Background(), testOrgID)
	return orgdomain.ActiveCount(o)
}

func TestInviteMember_CreatesAccount(t *testing.T) {
	f := newTestFixture(t, 3)

	res, err := f.svc.InviteMember(context.Background(), testAdminID, "new@example.com")
	if err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	if !res.AccountCreated {
		t.Error("expected a new account to be created")
	}
	u, _ := f.users.GetByEmail(context.Background(), "new@example.com")
	if u == nil {
		t.Fatal("user was not created")
	}
	if u.OrganizationID == nil || *u.OrganizationID != testOrgID {
		t.Error("user is not linked to the organization")
	}
	if u.PasswordHash == "" {
		t.Error("user has no password hash")
	}
	if got := activeCount(f); got != 2 {
		t.Errorf("active members = %d, want 2", got)
	}
	select {
	case msg := <-f.notify.ch:
		if msg.Kind != notification.KindAccountCreated {
			t.Errorf("notification kind = %s, want %s", msg.Kind, notification.KindAccountCreated)
		}
		if msg.TempPassword == "" {
			t.Error("account-created message carries no password")
		}
	case <-time.After(time.Second):
		t.Error("no notification enqueued")
	}
}

func TestInviteMember_SeatsExhausted(t *testing.T) {
	f := newTestFixture(t, 1)

	_, err := f.svc.InviteMember(context.Background(), testAdminID, "new@example.com")
	if !errors.Is(err, ErrSeatsExhausted) {
		t.Fatalf("err = %v, want ErrSeatsExhausted", err)
	}
	if u, _ := f.users.GetByEmail(context.Background(), "new@example.com"); u != nil {
		t.Error("account must not be created when seats are exhausted")
	}
	if got := activeCount(f); got != 1 {
		t.Errorf("active members = %d, want 1", got)
	}
}

func TestInviteMember_CapacityCheckedBeforeMembership(t *testing.T) {
	f := newTestFixture(t, 2)
	f.addMember(t, "user-2", "two@example.com")

	// Full org: the seat check wins over the already-a-member check.
	if _, err := f.svc.InviteMember(context.Background(), testAdminID, "two@example.com"); !errors.Is(err, ErrSeatsExhausted) {
		t.Fatalf("err = %v, want ErrSeatsExhausted", err)
	}
}

func TestInviteMember_AlreadyMember(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")

	_, err := f.svc.InviteMember(context.Background(), testAdminID, "two@example.com")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestInviteMember_ForeignMember(t *testing.T) {
	f := newTestFixture(t, 3)
	otherOrg := "org-2"
	f.users.byID["user-x"] = &userdomain.User{
		ID:             "user-x",
		Email:          "x@example.com",
		Role:           userdomain.RoleAttorney,
		OrganizationID: &otherOrg,
	}

	_, err := f.svc.InviteMember(context.Background(), testAdminID, "x@example.com")
	if !errors.Is(err, ErrForeignMember) {
		t.Fatalf("err = %v, want ErrForeignMember", err)
	}
}

func TestInviteMember_NotAuthorized(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")

	if _, err := f.svc.InviteMember(context.Background(), "user-2", "new@example.com"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("attorney invite err = %v, want ErrNotAuthorized", err)
	}
	if _, err := f.svc.InviteMember(context.Background(), "ghost", "new@example.com"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unknown actor err = %v, want ErrNotAuthorized", err)
	}
}

func TestInviteMember_ReactivatesRemovedMember(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")

	if _, err := f.svc.RemoveMember(context.Background(), testAdminID, "user-2"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if got := activeCount(f); got != 1 {
		t.Fatalf("active members after removal = %d, want 1", got)
	}

	res, err := f.svc.InviteMember(context.Background(), testAdminID, "two@example.com")
	if err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	if res.AccountCreated {
		t.Error("re-invite must not create a new account")
	}
	o, _ := f.orgs.GetByID(context.Background(), testOrgID)
	entries := 0
	for _, m := range o.Members {
		if m.UserID == "user-2" {
			entries++
			if m.Status != orgdomain.MemberStatusActive {
				t.Errorf("member status = %s, want active", m.Status)
			}
			if m.RemovedAt != nil {
				t.Error("removed_at not cleared on reactivation")
			}
		}
	}
	if entries != 1 {
		t.Errorf("member entries for user-2 = %d, want 1 (reactivated, not duplicated)", entries)
	}
}

func TestInviteMember_ReinvitedAdminJoinsAsAttorney(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")
	f.users.byID["user-2"].Role = userdomain.RoleAdmin
	o := f.orgs.orgs[testOrgID]
	for i := range o.Members {
		if o.Members[i].UserID == "user-2" {
			o.Members[i].Role = orgdomain.MemberRoleAdmin
		}
	}
	if _, err := f.svc.RemoveMember(context.Background(), testAdminID, "user-2"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}

	if _, err := f.svc.InviteMember(context.Background(), testAdminID, "two@example.com"); err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	u, _ := f.users.GetByID(context.Background(), "user-2")
	if u.Role != userdomain.RoleAttorney {
		t.Errorf("user role = %s, want attorney (admin standing does not survive removal)", u.Role)
	}
	o, _ = f.orgs.GetByID(context.Background(), testOrgID)
	for _, m := range o.Members {
		if m.UserID == "user-2" && m.Role != orgdomain.MemberRoleAttorney {
			t.Errorf("member role = %s, want attorney", m.Role)
		}
	}
	if _, err := f.svc.InviteMember(context.Background(), "user-2", "new@example.com"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("rejoined member invite err = %v, want ErrNotAuthorized", err)
	}
}

func TestInviteMember_ConcurrentLastSeat(t *testing.T) {
	f := newTestFixture(t, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	emails := []string{"a@example.com", "b@example.com"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.InviteMember(context.Background(), testAdminID, emails[i])
		}(i)
	}
	wg.Wait()

	successes, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrSeatsExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || exhausted != 1 {
		t.Errorf("got %d successes and %d seat failures, want exactly 1 of each", successes, exhausted)
	}
	o, _ := f.orgs.GetByID(context.Background(), testOrgID)
	if orgdomain.ActiveCount(o) > o.MaxSeats {
		t.Errorf("invariant violated: %d active members over %d seats", orgdomain.ActiveCount(o), o.MaxSeats)
	}
}

func issuePending(t *testing.T, f *testFixture, email string) string {
	t.Helper()
	inv, err := f.svc.IssueInvitation(context.Background(), testAdminID, email)
	if err != nil {
		t.Fatalf("IssueInvitation: %v", err)
	}
	return inv.Token
}

func TestAcceptInvitation(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "joiner@example.com", Role: userdomain.RoleAttorney}
	token := issuePending(t, f, "joiner@example.com")

	// Issuing alone must not consume a seat.
	if got := activeCount(f); got != 1 {
		t.Fatalf("active members after issue = %d, want 1", got)
	}

	if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	if got := activeCount(f); got != 2 {
		t.Errorf("active members = %d, want 2", got)
	}
	u, _ := f.users.GetByID(context.Background(), "user-j")
	if u.OrganizationID == nil || *u.OrganizationID != testOrgID {
		t.Error("accepted user is not linked to the organization")
	}
	inv, _ := f.invites.GetByToken(context.Background(), token)
	if inv.Status != invitationdomain.StatusAccepted {
		t.Errorf("invitation status = %s, want accepted", inv.Status)
	}
}

func TestAcceptInvitation_EmailMismatch(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "other@example.com", Role: userdomain.RoleAttorney}
	token := issuePending(t, f, "joiner@example.com")

	err := f.svc.AcceptInvitation(context.Background(), "user-j", token)
	if !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("err = %v, want ErrEmailMismatch", err)
	}
	inv, _ := f.invites.GetByToken(context.Background(), token)
	if inv.Status != invitationdomain.StatusPending {
		t.Errorf("invitation status = %s, want pending (mismatch must not burn the token)", inv.Status)
	}
}

func TestAcceptInvitation_CaseInsensitiveEmail(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "Joiner@Example.COM", Role: userdomain.RoleAttorney}
	token := issuePending(t, f, "joiner@example.com")

	if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
}

func TestAcceptInvitation_AlreadyAffiliated(t *testing.T) {
	f := newTestFixture(t, 3)
	otherOrg := "org-2"
	f.users.byID["user-j"] = &userdomain.User{
		ID:             "user-j",
		Email:          "joiner@example.com",
		Role:           userdomain.RoleAttorney,
		OrganizationID: &otherOrg,
	}
	token := issuePending(t, f, "joiner@example.com")

	if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); !errors.Is(err, ErrAlreadyAffiliated) {
		t.Fatalf("err = %v, want ErrAlreadyAffiliated", err)
	}
}

func TestAcceptInvitation_AffiliationRaceRejected(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "joiner@example.com", Role: userdomain.RoleAttorney}
	token := issuePending(t, f, "joiner@example.com")

	otherOrg := "org-2"
	now := time.Now().UTC()
	f.orgs.orgs[otherOrg] = &orgdomain.Org{
		ID:                 otherOrg,
		OwnerID:            "user-other",
		Name:               "Litt & Partners",
		Plan:               orgdomain.PlanStarter,
		MaxSeats:           3,
		SubscriptionStatus: "active",
		Members: []orgdomain.Member{{
			ID:       "member-j-2",
			UserID:   "user-j",
			Role:     orgdomain.MemberRoleAttorney,
			Status:   orgdomain.MemberStatusActive,
			JoinedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Another request lands the user in org-2 after this accept has started
	// but before its transaction begins.
	hooked := &hookTxRunner{hook: func() {
		f.users.byID["user-j"].OrganizationID = &otherOrg
	}}
	svc := NewMembershipService(
		hooked, f.orgs, f.users, f.invites, f.cases,
		f.verifier, f.policy, f.notify, nil,
		security.NewHasher(4), 7*24*time.Hour,
	)

	if err := svc.AcceptInvitation(context.Background(), "user-j", token); !errors.Is(err, ErrAlreadyAffiliated) {
		t.Fatalf("err = %v, want ErrAlreadyAffiliated", err)
	}
	u, _ := f.users.GetByID(context.Background(), "user-j")
	if u.OrganizationID == nil || *u.OrganizationID != otherOrg {
		t.Error("user must stay with the organization that won the race")
	}
	if got := activeCount(f); got != 1 {
		t.Errorf("active members = %d, want 1 (no dual admission)", got)
	}
	inv, _ := f.invites.GetByToken(context.Background(), token)
	if inv.Status != invitationdomain.StatusPending {
		t.Errorf("invitation status = %s, want pending", inv.Status)
	}
}

func TestAcceptInvitation_Expired(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "joiner@example.com", Role: userdomain.RoleAttorney}
	f.invites.m["tok-old"] = &invitationdomain.Invitation{
		Token:          "tok-old",
		OrganizationID: testOrgID,
		InvitedEmail:   "joiner@example.com",
		Status:         invitationdomain.StatusPending,
		ExpiresAt:      time.Now().UTC().Add(-time.Hour),
	}

	if err := f.svc.AcceptInvitation(context.Background(), "user-j", "tok-old"); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("err = %v, want ErrInvitationNotFound", err)
	}
}

func TestAcceptInvitation_SeatsExhaustedKeepsInvitationPending(t *testing.T) {
	f := newTestFixture(t, 1)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "joiner@example.com", Role: userdomain.RoleAttorney}
	token := issuePending(t, f, "joiner@example.com")

	if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); !errors.Is(err, ErrSeatsExhausted) {
		t.Fatalf("err = %v, want ErrSeatsExhausted", err)
	}
	inv, _ := f.invites.GetByToken(context.Background(), token)
	if inv.Status != invitationdomain.StatusPending {
		t.Fatalf("invitation status = %s, want pending", inv.Status)
	}

	// After capacity grows the same token redeems.
	f.orgs.orgs[testOrgID].MaxSeats = 2
	if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); err != nil {
		t.Fatalf("accept after capacity increase: %v", err)
	}
}

func TestInvitationTransitionsAreOneWay(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "joiner@example.com", Role: userdomain.RoleAttorney}

	t.Run("accept then accept", func(t *testing.T) {
		token := issuePending(t, f, "joiner@example.com")
		if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); err != nil {
			t.Fatalf("first accept: %v", err)
		}
		// A second accept of a consumed token fails even though the user is
		// now affiliated; the token check runs first.
		if err := f.svc.AcceptInvitation(context.Background(), "user-j", token); !errors.Is(err, ErrInvitationNotFound) {
			t.Fatalf("second accept err = %v, want ErrInvitationNotFound", err)
		}
	})

	t.Run("reject then accept", func(t *testing.T) {
		f := newTestFixture(t, 3)
		f.users.byID["user-k"] = &userdomain.User{ID: "user-k", Email: "k@example.com", Role: userdomain.RoleAttorney}
		token := issuePending(t, f, "k@example.com")
		if err := f.svc.RejectInvitation(context.Background(), "user-k", token); err != nil {
			t.Fatalf("reject: %v", err)
		}
		if err := f.svc.AcceptInvitation(context.Background(), "user-k", token); !errors.Is(err, ErrInvitationNotFound) {
			t.Fatalf("accept after reject err = %v, want ErrInvitationNotFound", err)
		}
	})
}

func TestRejectInvitation_TokenHolderMayDecline(t *testing.T) {
	f := newTestFixture(t, 3)
	f.users.byID["user-j"] = &userdomain.User{ID: "user-j", Email: "other@example.com", Role: userdomain.RoleAttorney}
	token := issuePending(t, f, "joiner@example.com")

	// The token is the capability: the caller's email need not match the
	// invited address.
	if err := f.svc.RejectInvitation(context.Background(), "user-j", token); err != nil {
		t.Fatalf("RejectInvitation: %v", err)
	}
	inv, _ := f.invites.GetByToken(context.Background(), token)
	if inv.Status != invitationdomain.StatusRejected {
		t.Errorf("invitation status = %s, want rejected", inv.Status)
	}

	if err := f.svc.RejectInvitation(context.Background(), "user-j", "tok-unknown"); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("unknown token err = %v, want ErrInvitationNotFound", err)
	}
}

func TestIssueInvitation_AlreadyMember(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")

	if _, err := f.svc.IssueInvitation(context.Background(), testAdminID, "two@example.com"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestRemoveMember(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")
	f.cases.refs = []*casesdomain.Ref{
		{ID: "case-1", CaseNumber: "2026-CV-0001", Title: "Doe v. Roe"},
	}

	res, err := f.svc.RemoveMember(context.Background(), testAdminID, "user-2")
	if err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if res.RemovedUserID != "user-2" {
		t.Errorf("RemovedUserID = %s", res.RemovedUserID)
	}
	if len(res.CasesNeedingReassignment) != 1 || res.CasesNeedingReassignment[0].ID != "case-1" {
		t.Errorf("advisory list = %+v, want case-1", res.CasesNeedingReassignment)
	}
	if got := activeCount(f); got != 1 {
		t.Errorf("active members = %d, want 1 (seat freed)", got)
	}
	u, _ := f.users.GetByID(context.Background(), "user-2")
	if u.OrganizationID != nil {
		t.Error("removed user still linked to the organization")
	}
}

func TestRemoveMember_ScanFailureDegrades(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")
	f.cases.err = errors.New("cases store down")

	res, err := f.svc.RemoveMember(context.Background(), testAdminID, "user-2")
	if err != nil {
		t.Fatalf("RemoveMember must succeed despite scan failure, got %v", err)
	}
	if len(res.CasesNeedingReassignment) != 0 {
		t.Errorf("advisory list = %+v, want empty", res.CasesNeedingReassignment)
	}
}

func TestRemoveMember_CannotRemoveSelf(t *testing.T) {
	f := newTestFixture(t, 3)
	if _, err := f.svc.RemoveMember(context.Background(), testAdminID, testAdminID); !errors.Is(err, ErrCannotRemoveSelf) {
		t.Fatalf("err = %v, want ErrCannotRemoveSelf", err)
	}
}

func TestRemoveMember_MemberNotFound(t *testing.T) {
	f := newTestFixture(t, 3)
	if _, err := f.svc.RemoveMember(context.Background(), testAdminID, "ghost"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("unknown user err = %v, want ErrMemberNotFound", err)
	}

	f.addMember(t, "user-2", "two@example.com")
	if _, err := f.svc.RemoveMember(context.Background(), testAdminID, "user-2"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, err := f.svc.RemoveMember(context.Background(), testAdminID, "user-2"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("double removal err = %v, want ErrMemberNotFound", err)
	}
}

func TestIncreaseSeats(t *testing.T) {
	f := newTestFixture(t, 3)
	// starter plan, 2 seats at 4900 cents
	f.verifier.p = &payment.Payment{ID: "pay-1", Status: payment.StatusCaptured, AmountCents: 9800}

	newMax, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 2, "pay-1")
	if err != nil {
		t.Fatalf("IncreaseSeats: %v", err)
	}
	if newMax != 5 {
		t.Errorf("newMax = %d, want 5", newMax)
	}
}

func TestIncreaseSeats_PaymentFailures(t *testing.T) {
	tests := []struct {
		name string
		p    *payment.Payment
		err  error
	}{
		{"unknown payment", nil, nil},
		{"gateway error", nil, errors.New("gateway timeout")},
		{"not captured", &payment.Payment{ID: "p", Status: payment.StatusPending, AmountCents: 9800}, nil},
		{"insufficient amount", &payment.Payment{ID: "p", Status: payment.StatusCaptured, AmountCents: 4900}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFixture(t, 3)
			f.verifier.p = tt.p
			f.verifier.err = tt.err

			_, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 2, "p")
			if !errors.Is(err, ErrPaymentVerificationFailed) {
				t.Fatalf("err = %v, want ErrPaymentVerificationFailed", err)
			}
			o, _ := f.orgs.GetByID(context.Background(), testOrgID)
			if o.MaxSeats != 3 {
				t.Errorf("max seats changed to %d on failed payment", o.MaxSeats)
			}
		})
	}
}

func TestIncreaseSeats_PolicyExemptionSkipsPayment(t *testing.T) {
	f := newTestFixture(t, 3)
	f.policy.exempt = true
	f.verifier.err = errors.New("gateway must not be called")

	newMax, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 1, "")
	if err != nil {
		t.Fatalf("IncreaseSeats with exemption: %v", err)
	}
	if newMax != 4 {
		t.Errorf("newMax = %d, want 4", newMax)
	}
}

func TestIncreaseSeats_PolicyErrorFailsClosed(t *testing.T) {
	f := newTestFixture(t, 3)
	f.policy.err = errors.New("policy engine down")
	f.verifier.p = &payment.Payment{ID: "p", Status: payment.StatusCaptured, AmountCents: 4900}

	// Policy failure means no exemption; the captured payment still clears it.
	if _, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 1, "p"); err != nil {
		t.Fatalf("IncreaseSeats: %v", err)
	}
}

func TestIncreaseSeats_CapExceeded(t *testing.T) {
	f := newTestFixture(t, 48)
	f.verifier.p = &payment.Payment{ID: "p", Status: payment.StatusCaptured, AmountCents: 49000}

	if _, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 3, "p"); !errors.Is(err, ErrSeatCapExceeded) {
		t.Fatalf("err = %v, want ErrSeatCapExceeded", err)
	}
	if _, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 0, "p"); !errors.Is(err, ErrSeatCapExceeded) {
		t.Fatalf("zero seats err = %v, want ErrSeatCapExceeded", err)
	}

	// Up to the cap is fine.
	newMax, err := f.svc.IncreaseSeats(context.Background(), testAdminID, 2, "p")
	if err != nil {
		t.Fatalf("IncreaseSeats to cap: %v", err)
	}
	if newMax != orgdomain.MaxSeatsLimit {
		t.Errorf("newMax = %d, want %d", newMax, orgdomain.MaxSeatsLimit)
	}
}

func TestGetOrganization(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")

	view, err := f.svc.GetOrganization(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if view.ActiveMembers != 2 || view.SeatsRemaining != 1 {
		t.Errorf("view = %d active / %d remaining, want 2/1", view.ActiveMembers, view.SeatsRemaining)
	}

	if _, err := f.svc.GetOrganization(context.Background(), "ghost"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unaffiliated actor err = %v, want ErrNotAuthorized", err)
	}
}

func TestListPendingInvitations_AdminOnly(t *testing.T) {
	f := newTestFixture(t, 3)
	f.addMember(t, "user-2", "two@example.com")
	issuePending(t, f, "joiner@example.com")

	invs, err := f.svc.ListPendingInvitations(context.Background(), testAdminID)
	if err != nil {
		t.Fatalf("ListPendingInvitations: %v", err)
	}
	if len(invs) != 1 {
		t.Errorf("pending invitations = %d, want 1", len(invs))
	}

	if _, err := f.svc.ListPendingInvitations(context.Background(), "user-2"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("attorney list err = %v, want ErrNotAuthorized", err)
	}
}

// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (admin@firmdesk.dev) already exists.
package main

import (
	"context"
	"log"
	"time"

	"firmdesk/backend/internal/config"
	"firmdesk/backend/internal/db"
	orgdomain "firmdesk/backend/internal/organization/domain"
	orgrepo "firmdesk/backend/internal/organization/repository"
	"firmdesk/backend/internal/security"
	userdomain "firmdesk/backend/internal/user/domain"
	userrepo "firmdesk/backend/internal/user/repository"
)

const (
	devAdminEmail    = "admin@firmdesk.dev"
	devPassword      = "password123"
	devOrgID         = "dev-org-001"
	devAdminID       = "dev-user-001"
	devAttorneyID    = "dev-user-002"
	devAttorney2ID   = "dev-user-003"
	devAttorneyEmail = "attorney@firmdesk.dev"
	devAttorney2Mail = "paralegal@firmdesk.dev"
	devCaseID        = "dev-case-001"
	devCase2ID       = "dev-case-002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	orgs := orgrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, devAdminEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev data already present, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	now := time.Now().UTC()
	orgID := devOrgID

	if err := orgs.Create(ctx, &orgdomain.Org{
		ID:                 orgID,
		OwnerID:            devAdminID,
		Name:               "Dewey & Associates",
		Plan:               orgdomain.PlanProfessional,
		MaxSeats:           5,
		SubscriptionStatus: "active",
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		log.Fatalf("seed: org: %v", err)
	}

	seedUsers := []struct {
		id, email, name string
		role            userdomain.Role
	}{
		{devAdminID, devAdminEmail, "Dev Admin", userdomain.RoleAdmin},
		{devAttorneyID, devAttorneyEmail, "Dev Attorney", userdomain.RoleAttorney},
		{devAttorney2ID, devAttorney2Mail, "Dev Paralegal", userdomain.RoleAttorney},
	}
	for i, u := range seedUsers {
		if err := users.Create(ctx, &userdomain.User{
			ID:             u.id,
			Email:          u.email,
			Name:           u.name,
			Role:           u.role,
			OrganizationID: &orgID,
			PasswordHash:   hash,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			log.Fatalf("seed: user %s: %v", u.email, err)
		}
		memberRole := orgdomain.MemberRoleAttorney
		if u.role == userdomain.RoleAdmin {
			memberRole = orgdomain.MemberRoleAdmin
		}
		if err := orgs.AppendMember(ctx, orgID, &orgdomain.Member{
			ID:       "dev-member-00" + string(rune('1'+i)),
			UserID:   u.id,
			Role:     memberRole,
			Status:   orgdomain.MemberStatusActive,
			JoinedAt: now,
		}); err != nil {
			log.Fatalf("seed: member %s: %v", u.email, err)
		}
	}

	seedCases := []struct {
		id, number, title, lead string
		assigned                []string
	}{
		{devCaseID, "2026-CV-0142", "Harmon v. Ridgeline Insurance", devAttorneyID, []string{devAttorneyID, devAttorney2ID}},
		{devCase2ID, "2026-PR-0017", "Estate of M. Calloway", devAttorney2ID, []string{devAttorney2ID}},
	}
	for _, c := range seedCases {
		if _, err := pool.Exec(ctx, `
			INSERT INTO cases (id, org_id, case_number, title, lead_attorney_id, created_by, assigned_lawyers, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
			c.id, orgID, c.number, c.title, c.lead, devAdminID, c.assigned, now,
		); err != nil {
			log.Fatalf("seed: case %s: %v", c.number, err)
		}
		for _, uid := range c.assigned {
			if _, err := pool.Exec(ctx, `
				INSERT INTO case_team_members (case_id, user_id, role) VALUES ($1, $2, 'attorney')`,
				c.id, uid,
			); err != nil {
				log.Fatalf("seed: case team %s: %v", c.number, err)
			}
		}
	}

	log.Printf("seed: created org %s with %d users (password %q)", orgID, len(seedUsers), devPassword)
}

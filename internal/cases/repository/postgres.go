package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"firmdesk/backend/internal/cases/domain"
	"firmdesk/backend/internal/db"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a case repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListReferencing returns refs of non-deleted cases in the org referencing
// userID in lead_attorney_id, created_by, assigned_lawyers, or the case team.
func (r *PostgresRepository) ListReferencing(ctx context.Context, orgID, userID string) ([]*domain.Ref, error) {
	q := db.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT c.id, c.case_number, c.title
		FROM cases c
		WHERE c.org_id = $1 AND c.deleted_at IS NULL
		  AND (c.lead_attorney_id = $2
		       OR c.created_by = $2
		       OR $2 = ANY (c.assigned_lawyers)
		       OR EXISTS (SELECT 1 FROM case_team_members tm WHERE tm.case_id = c.id AND tm.user_id = $2))
		ORDER BY c.created_at`,
		orgID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Ref
	for rows.Next() {
		var ref domain.Ref
		if err := rows.Scan(&ref.ID, &ref.CaseNumber, &ref.Title); err != nil {
			return nil, err
		}
		out = append(out, &ref)
	}
	return out, rows.Err()
}

// GetManyForUpdate loads the given cases with rows locked, excluding
// soft-deleted cases and ids outside the org. Call only inside a transaction.
func (r *PostgresRepository) GetManyForUpdate(ctx context.Context, orgID string, ids []string) ([]*domain.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := db.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT id, org_id, case_number, title, lead_attorney_id, created_by, assigned_lawyers, deleted_at, created_at, updated_at
		FROM cases
		WHERE org_id = $1 AND id = ANY ($2) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE`,
		orgID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Case
	for rows.Next() {
		var c domain.Case
		if err := rows.Scan(
			&c.ID, &c.OrgID, &c.CaseNumber, &c.Title, &c.LeadAttorneyID,
			&c.CreatedBy, &c.AssignedLawyers, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range out {
		team, err := r.listTeam(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.TeamMembers = team
	}
	return out, nil
}

func (r *PostgresRepository) listTeam(ctx context.Context, caseID string) ([]domain.TeamMember, error) {
	q := db.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT user_id, role FROM case_team_members WHERE case_id = $1 ORDER BY added_at`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TeamMember
	for rows.Next() {
		var tm domain.TeamMember
		if err := rows.Scan(&tm.UserID, &tm.Role); err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

// UpdateOwnership persists the ownership fields and rewrites the team list.
func (r *PostgresRepository) UpdateOwnership(ctx context.Context, c *domain.Case) error {
	q := db.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, `
		UPDATE cases
		SET lead_attorney_id = $1, created_by = $2, assigned_lawyers = $3, updated_at = now()
		WHERE id = $4`,
		c.LeadAttorneyID, c.CreatedBy, c.AssignedLawyers, c.ID,
	)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `DELETE FROM case_team_members WHERE case_id = $1`, c.ID); err != nil {
		return err
	}
	for _, tm := range c.TeamMembers {
		if _, err := q.Exec(ctx, `
			INSERT INTO case_team_members (case_id, user_id, role) VALUES ($1, $2, $3)`,
			c.ID, tm.UserID, tm.Role,
		); err != nil {
			return err
		}
	}
	return nil
}

// AppendActivity inserts one case audit entry.
func (r *PostgresRepository) AppendActivity(ctx context.Context, a *domain.Activity) error {
	q := db.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO case_activity (id, case_id, actor_id, action, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.CaseID, a.ActorID, a.Action, a.Note, a.CreatedAt,
	)
	return err
}

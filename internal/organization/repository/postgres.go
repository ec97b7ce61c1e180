package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"firmdesk/backend/internal/db"
	"firmdesk/backend/internal/organization/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an organization repository that uses the given pool for persistence.
// Methods use the transaction from ctx when called inside db.Runner.RunInTx.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const orgColumns = `id, owner_id, name, plan, max_seats, subscription_status, subscription_expires_at, created_at, updated_at`

// GetByID returns the aggregate for id with all member entries, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Org, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate returns the aggregate with the organization row locked
// (SELECT ... FOR UPDATE). Call only inside a transaction.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Org, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresRepository) get(ctx context.Context, id string, forUpdate bool) (*domain.Org, error) {
	q := db.QuerierFrom(ctx, r.pool)
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var o domain.Org
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.OwnerID, &o.Name, &o.Plan, &o.MaxSeats,
		&o.SubscriptionStatus, &o.SubscriptionExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	members, err := r.listMembers(ctx, id, "")
	if err != nil {
		return nil, err
	}
	o.Members = make([]domain.Member, len(members))
	for i := range members {
		o.Members[i] = *members[i]
	}
	return &o, nil
}

// Create persists the organization record. Member entries are appended separately.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Org) error {
	q := db.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO organizations (id, owner_id, name, plan, max_seats, subscription_status, subscription_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.OwnerID, o.Name, o.Plan, o.MaxSeats,
		o.SubscriptionStatus, o.SubscriptionExpiresAt, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// AppendMember inserts a new member entry for the organization.
func (r *PostgresRepository) AppendMember(ctx context.Context, orgID string, m *domain.Member) error {
	q := db.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO org_members (id, org_id, user_id, role, status, joined_at, removed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, orgID, m.UserID, m.Role, m.Status, m.JoinedAt, m.RemovedAt,
	)
	return err
}

// ReactivateMember flips the entry back to active with a refreshed joined_at
// and a cleared removed_at. Returns an error if the entry does not exist.
func (r *PostgresRepository) ReactivateMember(ctx context.Context, memberID string, role domain.MemberRole, at time.Time) error {
	q := db.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE org_members
		SET status = $1, role = $2, joined_at = $3, removed_at = NULL
		WHERE id = $4`,
		domain.MemberStatusActive, role, at, memberID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("member entry not found")
	}
	return nil
}

// MarkMemberRemoved sets the entry's status to removed and records removed_at.
// The row is kept for audit history.
func (r *PostgresRepository) MarkMemberRemoved(ctx context.Context, memberID string, at time.Time) error {
	q := db.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE org_members
		SET status = $1, removed_at = $2
		WHERE id = $3`,
		domain.MemberStatusRemoved, at, memberID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("member entry not found")
	}
	return nil
}

// IncreaseMaxSeats adds delta to max_seats in a single conditional statement.
// The WHERE clause makes the cap check and the write one atomic step, so no
// transaction is required around it.
func (r *PostgresRepository) IncreaseMaxSeats(ctx context.Context, orgID string, delta, limit int) (int, bool, error) {
	q := db.QuerierFrom(ctx, r.pool)
	var newMax int
	err := q.QueryRow(ctx, `
		UPDATE organizations
		SET max_seats = max_seats + $1, updated_at = now()
		WHERE id = $2 AND max_seats + $1 <= $3
		RETURNING max_seats`,
		delta, orgID, limit,
	).Scan(&newMax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return newMax, true, nil
}

// ListActiveMembers returns the active member entries for the organization.
func (r *PostgresRepository) ListActiveMembers(ctx context.Context, orgID string) ([]*domain.Member, error) {
	return r.listMembers(ctx, orgID, domain.MemberStatusActive)
}

func (r *PostgresRepository) listMembers(ctx context.Context, orgID string, status domain.MemberStatus) ([]*domain.Member, error) {
	q := db.QuerierFrom(ctx, r.pool)
	query := `SELECT id, user_id, role, status, joined_at, removed_at FROM org_members WHERE org_id = $1`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY joined_at`
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt, &m.RemovedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

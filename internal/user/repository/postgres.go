package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"firmdesk/backend/internal/db"
	"firmdesk/backend/internal/user/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a user repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, name, role, organization_id, password_hash, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := db.QuerierFrom(ctx, r.pool)
	return scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns the user whose email matches case-insensitively, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := db.QuerierFrom(ctx, r.pool)
	return scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	q := db.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO users (id, email, name, role, organization_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.Role, u.OrganizationID, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// SetOrganization points the user at orgID with the given role.
func (r *PostgresRepository) SetOrganization(ctx context.Context, userID, orgID string, role domain.Role) error {
	q := db.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE users SET organization_id = $1, role = $2, updated_at = now() WHERE id = $3`,
		orgID, role, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("user not found")
	}
	return nil
}

// ClearOrganization detaches the user from its organization.
func (r *PostgresRepository) ClearOrganization(ctx context.Context, userID string) error {
	q := db.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE users SET organization_id = NULL, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("user not found")
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.OrganizationID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

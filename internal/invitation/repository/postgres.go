package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"firmdesk/backend/internal/db"
	"firmdesk/backend/internal/invitation/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an invitation repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const invColumns = `token, org_id, invited_email, status, expires_at, invited_user_id, accepted_at, created_at`

// Create persists the invitation.
func (r *PostgresRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	q := db.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO invitations (token, org_id, invited_email, status, expires_at, invited_user_id, accepted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.Token, inv.OrganizationID, inv.InvitedEmail, inv.Status,
		inv.ExpiresAt, inv.InvitedUserID, inv.AcceptedAt, inv.CreatedAt,
	)
	return err
}

// GetByToken returns the invitation for token, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	q := db.QuerierFrom(ctx, r.pool)
	var inv domain.Invitation
	err := q.QueryRow(ctx, `SELECT `+invColumns+` FROM invitations WHERE token = $1`, token).Scan(
		&inv.Token, &inv.OrganizationID, &inv.InvitedEmail, &inv.Status,
		&inv.ExpiresAt, &inv.InvitedUserID, &inv.AcceptedAt, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// MarkAccepted transitions the invitation to accepted if it is still pending
// and unexpired. The condition lives in the WHERE clause so a second accept
// of the same token affects zero rows.
func (r *PostgresRepository) MarkAccepted(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	q := db.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE invitations
		SET status = $1, invited_user_id = $2, accepted_at = $3
		WHERE token = $4 AND status = $5 AND expires_at > $3`,
		domain.StatusAccepted, userID, at, token, domain.StatusPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRejected transitions the invitation to rejected if it is still pending and unexpired.
func (r *PostgresRepository) MarkRejected(ctx context.Context, token string, at time.Time) (bool, error) {
	q := db.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE invitations
		SET status = $1
		WHERE token = $2 AND status = $3 AND expires_at > $4`,
		domain.StatusRejected, token, domain.StatusPending, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListPendingByOrg returns pending, unexpired invitations for the organization.
func (r *PostgresRepository) ListPendingByOrg(ctx context.Context, orgID string) ([]*domain.Invitation, error) {
	q := db.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT `+invColumns+` FROM invitations
		WHERE org_id = $1 AND status = $2 AND expires_at > now()
		ORDER BY created_at`,
		orgID, domain.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(
			&inv.Token, &inv.OrganizationID, &inv.InvitedEmail, &inv.Status,
			&inv.ExpiresAt, &inv.InvitedUserID, &inv.AcceptedAt, &inv.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}

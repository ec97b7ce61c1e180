package domain

import "time"

// Invitation is a token-based asynchronous join request. Status transitions
// are one-way: pending to accepted or rejected, never back.
type Invitation struct {
	Token          string
	OrganizationID string
	InvitedEmail   string
	Status         Status
	ExpiresAt      time.Time
	InvitedUserID  *string
	AcceptedAt     *time.Time
	CreatedAt      time.Time
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Expired reports whether the invitation's validity window has passed at now.
func (i *Invitation) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

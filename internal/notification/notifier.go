// Package notification is the fire-and-forget email side channel. Messages
// are enqueued strictly after the membership transaction commits; delivery is
// at-least-once and failures never unwind the committed change.
package notification

import (
	"context"
	"time"
)

// Kind selects the email template.
type Kind string

const (
	// KindAccountCreated is sent to a user whose account was created by an
	// invite; it carries the generated initial password.
	KindAccountCreated Kind = "account_created"
	// KindAddedToFirm is sent to an existing user added to an organization.
	KindAddedToFirm Kind = "added_to_firm"
	// KindInvitation is sent when a token invitation is issued.
	KindInvitation Kind = "invitation"
)

// Message is one outbound email. Body fields are rendered by the worker.
type Message struct {
	Kind         Kind      `json:"kind"`
	To           string    `json:"to"`
	OrgName      string    `json:"org_name"`
	TempPassword string    `json:"temp_password,omitempty"`
	InviteToken  string    `json:"invite_token,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Notifier enqueues messages for delivery. Callers use it best-effort: log
// and ignore errors.
type Notifier interface {
	// Enqueue sends a single message to the side channel. Implementations
	// may block briefly; use SendAsync from request paths.
	Enqueue(ctx context.Context, msg *Message) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}

// NopNotifier discards messages. Used when no brokers are configured.
type NopNotifier struct{}

func (NopNotifier) Enqueue(context.Context, *Message) error { return nil }
func (NopNotifier) Close() error                            { return nil }

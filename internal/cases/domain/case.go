// Package domain holds case-ownership records. Only the ownership-reference
// fields matter to this subsystem; the full case file lives elsewhere.
package domain

import "time"

// Case carries the user references a removed member may dangle from:
// LeadAttorneyID, CreatedBy, AssignedLawyers, and TeamMembers. None of these
// are enforced by the store; the reassignment service is the only repair path.
type Case struct {
	ID              string
	OrgID           string
	CaseNumber      string
	Title           string
	LeadAttorneyID  string
	CreatedBy       string
	AssignedLawyers []string
	TeamMembers     []TeamMember
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TeamMember is a user's entry on a case team.
type TeamMember struct {
	UserID string
	Role   string
}

// Ref identifies a case in advisory scan results.
type Ref struct {
	ID         string
	CaseNumber string
	Title      string
}

// Activity is one audit entry on a case.
type Activity struct {
	ID        string
	CaseID    string
	ActorID   string
	Action    string
	Note      string
	CreatedAt time.Time
}

// References reports whether userID appears in any ownership field.
func (c *Case) References(userID string) bool {
	if c.LeadAttorneyID == userID || c.CreatedBy == userID {
		return true
	}
	for _, id := range c.AssignedLawyers {
		if id == userID {
			return true
		}
	}
	for _, tm := range c.TeamMembers {
		if tm.UserID == userID {
			return true
		}
	}
	return false
}

// Reassign rewrites every occurrence of from in the ownership fields to to,
// de-duplicating AssignedLawyers and TeamMembers so repeated reassignment is
// idempotent. Returns true when any field changed.
func (c *Case) Reassign(from, to string) bool {
	changed := false
	if c.LeadAttorneyID == from {
		c.LeadAttorneyID = to
		changed = true
	}
	if c.CreatedBy == from {
		c.CreatedBy = to
		changed = true
	}

	if replaceInList(&c.AssignedLawyers, from, to) {
		changed = true
	}

	seen := make(map[string]bool, len(c.TeamMembers))
	team := c.TeamMembers[:0]
	for _, tm := range c.TeamMembers {
		if tm.UserID == from {
			tm.UserID = to
			changed = true
		}
		if seen[tm.UserID] {
			changed = true
			continue
		}
		seen[tm.UserID] = true
		team = append(team, tm)
	}
	c.TeamMembers = team

	return changed
}

func replaceInList(list *[]string, from, to string) bool {
	changed := false
	seen := make(map[string]bool, len(*list))
	out := (*list)[:0]
	for _, id := range *list {
		if id == from {
			id = to
			changed = true
		}
		if seen[id] {
			changed = true
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	*list = out
	return changed
}

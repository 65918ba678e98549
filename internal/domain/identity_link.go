package domain

// Reserved identity link types. Any other non-empty string is a legal custom type.
const (
	IdentityLinkAssignee    = "assignee"
	IdentityLinkOwner       = "owner"
	IdentityLinkCandidate   = "candidate"
	IdentityLinkParticipant = "participant"
)

// IdentityLink associates a task or process instance with a user or a group
// under a named role. Exactly one of UserID and GroupID is set. Duplicate
// (task, identity, type) tuples are allowed to accumulate; a delete by
// identity removes every matching tuple at once.
type IdentityLink struct {
	ID                string
	TaskID            *string
	ProcessInstanceID *string
	UserID            *string
	GroupID           *string
	Type              string
}

// IsUser reports whether the link points at a user rather than a group.
func (l *IdentityLink) IsUser() bool {
	return l.UserID != nil
}

// Matches reports whether the link carries the given identity and type.
// A nil userID/groupID argument matches only a link where that side is unset.
func (l *IdentityLink) Matches(userID, groupID *string, linkType string) bool {
	if l.Type != linkType {
		return false
	}
	if !equalPtr(l.UserID, userID) {
		return false
	}
	return equalPtr(l.GroupID, groupID)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

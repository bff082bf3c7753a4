package models

import "crypto/subtle"

// Role is a member's permission level inside a family group.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// MemberStatus tracks whether a member has fully joined.
type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberPending MemberStatus = "pending"
)

// InvitationStatus is the lifecycle state of an invitation.
// Once an invitation leaves pending it never returns to it.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// FamilyGroup is a named collection of users sharing expenses and goals.
//
// Invariants:
//   - exactly one member has RoleOwner and that member's UserID equals Owner
//   - a user appears at most once in Members
//   - at most one pending invitation exists per email
type FamilyGroup struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Smiths").
	Name string `json:"name"`

	// Owner is the user ID of the creator. It never changes.
	Owner string `json:"owner"`

	// Currency is the ISO 4217 code amounts in this group are expressed in.
	Currency string `json:"currency"`

	// Members is the ordered member list, owner first.
	Members []Member `json:"members"`

	// Invitations holds pending and past invitations.
	Invitations []Invitation `json:"invitations"`

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64 `json:"createdAt"`

	// UpdatedAt is the Unix timestamp of the last change to the group record.
	UpdatedAt int64 `json:"updatedAt"`
}

// Member is one user's membership in a family group.
type Member struct {
	UserID   string       `json:"userId"`
	Role     Role         `json:"role"`
	Status   MemberStatus `json:"status"`
	JoinedAt int64        `json:"joinedAt"`

	// Resolved on read.
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Invitation grants join rights to whoever holds Token until ExpiresAt.
type Invitation struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Token     string           `json:"-"`
	Status    InvitationStatus `json:"status"`
	InvitedBy string           `json:"invitedBy"`
	ExpiresAt int64            `json:"expiresAt"`
	CreatedAt int64            `json:"createdAt"`
}

// Member returns the membership entry for userID, if any.
func (g *FamilyGroup) Member(userID string) (*Member, bool) {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i], true
		}
	}
	return nil, false
}

// IsMember reports whether userID appears in the member list, in any status.
func (g *FamilyGroup) IsMember(userID string) bool {
	_, ok := g.Member(userID)
	return ok
}

// IsActiveMember reports whether userID is an active member.
func (g *FamilyGroup) IsActiveMember(userID string) bool {
	m, ok := g.Member(userID)
	return ok && m.Status == MemberActive
}

// CanManage reports whether userID is an active owner or admin.
func (g *FamilyGroup) CanManage(userID string) bool {
	m, ok := g.Member(userID)
	if !ok || m.Status != MemberActive {
		return false
	}
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// ActiveMemberIDs returns the user IDs of active members in member order.
func (g *FamilyGroup) ActiveMemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Status == MemberActive {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// PendingInvitation returns the pending invitation carrying token, if any.
func (g *FamilyGroup) PendingInvitation(token string) (*Invitation, bool) {
	if token == "" {
		return nil, false
	}
	for i := range g.Invitations {
		inv := &g.Invitations[i]
		if inv.Status == InvitationPending && subtle.ConstantTimeCompare([]byte(inv.Token), []byte(token)) == 1 {
			return inv, true
		}
	}
	return nil, false
}

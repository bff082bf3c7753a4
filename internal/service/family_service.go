package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/familyfunds/internal/auth"
	"github.com/mmynk/familyfunds/internal/metrics"
	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/notify"
	"github.com/mmynk/familyfunds/internal/realtime"
	"github.com/mmynk/familyfunds/internal/storage"
)

// DefaultInviteTTL is how long an invitation token stays valid.
const DefaultInviteTTL = 7 * 24 * time.Hour

// FamilyService manages family groups, their members and invitations.
type FamilyService struct {
	store  storage.Store
	mailer notify.Mailer
	events Broadcaster

	inviteTTL         time.Duration
	requireEmailMatch bool
	now               func() time.Time
}

// FamilyOption configures a FamilyService.
type FamilyOption func(*FamilyService)

// WithInviteTTL overrides DefaultInviteTTL.
func WithInviteTTL(ttl time.Duration) FamilyOption {
	return func(s *FamilyService) { s.inviteTTL = ttl }
}

// WithEmailMatch requires the joining account's email to equal the invited
// address. Off by default, which makes invitations shareable links.
func WithEmailMatch(require bool) FamilyOption {
	return func(s *FamilyService) { s.requireEmailMatch = require }
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) FamilyOption {
	return func(s *FamilyService) { s.now = now }
}

// NewFamilyService creates a FamilyService. A nil mailer disables invitation
// emails; a nil broadcaster disables realtime events.
func NewFamilyService(store storage.Store, mailer notify.Mailer, events Broadcaster, opts ...FamilyOption) *FamilyService {
	s := &FamilyService{
		store:     store,
		mailer:    mailer,
		events:    orNoop(events),
		inviteTTL: DefaultInviteTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGroup creates a group owned by ownerID. An empty currency means USD.
func (s *FamilyService) CreateGroup(ctx context.Context, ownerID, name, currency string) (*models.FamilyGroup, error) {
	slog.Info("CreateGroup request received", "user_id", ownerID, "name", name)

	name, err := cleanName("name", name)
	if err != nil {
		return nil, err
	}
	currency, err = cleanCurrency(currency)
	if err != nil {
		return nil, err
	}

	group := &models.FamilyGroup{
		Name:     name,
		Owner:    ownerID,
		Currency: currency,
		Members: []models.Member{{
			UserID: ownerID,
			Role:   models.RoleOwner,
			Status: models.MemberActive,
		}},
		Invitations: []models.Invitation{},
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "user_id", ownerID, "error", err)
		return nil, err
	}

	slog.Info("Family group created", "group_id", group.ID, "user_id", ownerID)
	return s.resolve(ctx, group)
}

// ListGroups returns the groups userID belongs to, newest first.
func (s *FamilyService) ListGroups(ctx context.Context, userID string) ([]*models.FamilyGroup, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "user_id", userID, "error", err)
		return nil, err
	}
	if err := s.resolveMembers(ctx, groups...); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetGroup returns a group with member names resolved. Only members may read it.
func (s *FamilyService) GetGroup(ctx context.Context, userID, groupID string) (*models.FamilyGroup, error) {
	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) {
		return nil, fmt.Errorf("%w: not a member of this family group", ErrNotAuthorized)
	}
	return s.resolve(ctx, group)
}

// RenameGroup changes the group's name. Owner or admin only.
func (s *FamilyService) RenameGroup(ctx context.Context, userID, groupID, name string) (*models.FamilyGroup, error) {
	slog.Info("RenameGroup request received", "group_id", groupID, "user_id", userID)

	name, err := cleanName("name", name)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.CanManage(userID) {
		return nil, fmt.Errorf("%w: only an owner or admin can rename the group", ErrNotAuthorized)
	}

	if err := s.store.RenameGroup(ctx, groupID, name); err != nil {
		return nil, notFound(err, "family group", groupID)
	}
	return s.GetGroup(ctx, userID, groupID)
}

// InviteMember issues an invitation for email and emails the join link.
//
// Any pending invitation for the same address is superseded. The invitation
// is stored before the email is sent; a failed send is logged and does not
// undo it. The returned invitation carries the token.
func (s *FamilyService) InviteMember(ctx context.Context, userID, groupID, email string) (*models.Invitation, error) {
	slog.Info("InviteMember request received", "group_id", groupID, "user_id", userID)

	email, err := cleanEmail(email)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActiveMember(userID) {
		return nil, fmt.Errorf("%w: not a member of this family group", ErrNotAuthorized)
	}

	invitee, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if group.IsActiveMember(invitee.ID) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMember, email)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	token, err := auth.NewInvitationToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv := &models.Invitation{
		Email:     email,
		Token:     token,
		Status:    models.InvitationPending,
		InvitedBy: userID,
		ExpiresAt: now.Add(s.inviteTTL).Unix(),
		CreatedAt: now.Unix(),
	}
	if err := s.store.AddInvitation(ctx, groupID, inv); err != nil {
		slog.Error("InviteMember failed", "group_id", groupID, "error", err)
		return nil, notFound(err, "family group", groupID)
	}

	s.sendInvitation(ctx, group, userID, inv)
	s.events.Broadcast(groupID, realtime.EventMemberInvited, map[string]any{
		"familyGroupId": groupID,
		"invitation":    inv,
	})

	slog.Info("Member invited", "group_id", groupID, "invitation_id", inv.ID)
	return inv, nil
}

func (s *FamilyService) sendInvitation(ctx context.Context, group *models.FamilyGroup, inviterID string, inv *models.Invitation) {
	if s.mailer == nil {
		return
	}

	inviterName := ""
	if inviter, err := s.store.GetUserByID(ctx, inviterID); err == nil {
		inviterName = inviter.DisplayName
	}

	err := s.mailer.SendInvitation(ctx, notify.InvitationMessage{
		To:          inv.Email,
		GroupID:     group.ID,
		GroupName:   group.Name,
		InviterName: inviterName,
		Token:       inv.Token,
		ExpiresAt:   time.Unix(inv.ExpiresAt, 0),
	})
	if err != nil {
		metrics.InvitationEmails.WithLabelValues("failed").Inc()
		slog.Warn("Invitation email failed", "group_id", group.ID, "invitation_id", inv.ID, "error", err)
		return
	}
	metrics.InvitationEmails.WithLabelValues("sent").Inc()
}

// JoinGroup consumes an invitation token and adds userID as an active member.
//
// Checks run in order: the group must exist, the token must match a pending
// invitation, the invitation must not have expired (an expired one is marked
// so), and the user must not already be a member.
func (s *FamilyService) JoinGroup(ctx context.Context, userID, groupID, token string) (*models.FamilyGroup, error) {
	slog.Info("JoinGroup request received", "group_id", groupID, "user_id", userID)

	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrValidation)
	}
	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}

	inv, ok := group.PendingInvitation(token)
	if !ok {
		return nil, ErrInvalidInvitation
	}

	now := s.now()
	if now.Unix() > inv.ExpiresAt {
		err := s.store.SetInvitationStatus(ctx, inv.ID, models.InvitationExpired)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Error("Failed to mark invitation expired", "invitation_id", inv.ID, "error", err)
			return nil, err
		}
		return nil, ErrInvitationExpired
	}

	if s.requireEmailMatch {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, notFound(err, "user", userID)
		}
		if user.Email != inv.Email {
			return nil, fmt.Errorf("%w: invitation was issued to a different email", ErrInvalidInvitation)
		}
	}

	if group.IsMember(userID) {
		return nil, ErrAlreadyMember
	}

	member := models.Member{
		UserID:   userID,
		Role:     models.RoleMember,
		Status:   models.MemberActive,
		JoinedAt: now.Unix(),
	}
	if err := s.store.AcceptInvitation(ctx, groupID, inv.ID, member); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrInvalidInvitation
		}
		slog.Error("JoinGroup failed", "group_id", groupID, "user_id", userID, "error", err)
		return nil, err
	}

	joined, err := s.GetGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if m, ok := joined.Member(userID); ok {
		member = *m
	}
	s.events.Broadcast(groupID, realtime.EventMemberJoined, map[string]any{
		"familyGroupId": groupID,
		"member":        member,
	})

	slog.Info("Member joined", "group_id", groupID, "user_id", userID)
	return joined, nil
}

// RemoveMember removes memberID from the group. The requester must be an
// owner or admin; only the owner may remove an admin; the owner can never
// be removed.
func (s *FamilyService) RemoveMember(ctx context.Context, userID, groupID, memberID string) error {
	slog.Info("RemoveMember request received", "group_id", groupID, "user_id", userID, "member_id", memberID)

	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return err
	}
	if memberID == group.Owner {
		return fmt.Errorf("%w: the owner cannot be removed", ErrForbidden)
	}
	if !group.CanManage(userID) {
		return fmt.Errorf("%w: only an owner or admin can remove members", ErrNotAuthorized)
	}
	target, ok := group.Member(memberID)
	if !ok {
		return fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	if target.Role == models.RoleAdmin && userID != group.Owner {
		return fmt.Errorf("%w: only the owner can remove an admin", ErrNotAuthorized)
	}

	if err := s.store.RemoveMember(ctx, groupID, memberID); err != nil {
		return notFound(err, "member", memberID)
	}

	s.events.Broadcast(groupID, realtime.EventMemberRemoved, map[string]string{
		"familyGroupId": groupID,
		"userId":        memberID,
	})
	s.events.Evict(groupID, memberID)

	slog.Info("Member removed", "group_id", groupID, "member_id", memberID)
	return nil
}

// UpdateMemberRole promotes or demotes a member. Owner only; the owner's own
// role is fixed.
func (s *FamilyService) UpdateMemberRole(ctx context.Context, userID, groupID, memberID string, role models.Role) (*models.FamilyGroup, error) {
	slog.Info("UpdateMemberRole request received", "group_id", groupID, "member_id", memberID, "role", role)

	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, fmt.Errorf("%w: role must be admin or member", ErrValidation)
	}
	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if userID != group.Owner {
		return nil, fmt.Errorf("%w: only the owner can change roles", ErrForbidden)
	}
	if memberID == group.Owner {
		return nil, fmt.Errorf("%w: the owner's role cannot change", ErrForbidden)
	}
	if !group.IsMember(memberID) {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}

	if err := s.store.UpdateMemberRole(ctx, groupID, memberID, role); err != nil {
		return nil, notFound(err, "member", memberID)
	}
	return s.GetGroup(ctx, userID, groupID)
}

// DeleteGroup deletes the group with its expenses, goals and invitations.
// Only the group's owner may do this.
func (s *FamilyService) DeleteGroup(ctx context.Context, userID, groupID string) error {
	slog.Info("DeleteGroup request received", "group_id", groupID, "user_id", userID)

	group, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return err
	}
	if userID != group.Owner {
		return fmt.Errorf("%w: only the owner can delete the group", ErrForbidden)
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		slog.Error("DeleteGroup failed", "group_id", groupID, "error", err)
		return notFound(err, "family group", groupID)
	}

	s.events.Broadcast(groupID, realtime.EventFamilyDeleted, map[string]string{"familyGroupId": groupID})
	s.events.CloseRoom(groupID)

	slog.Info("Family group deleted", "group_id", groupID)
	return nil
}

// ExpireInvitations marks every overdue pending invitation as expired.
func (s *FamilyService) ExpireInvitations(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireInvitations(ctx, s.now().Unix())
	if err != nil {
		return 0, err
	}
	slog.Info("Expired invitations", "count", n)
	return n, nil
}

// IsActiveMember reports whether userID is an active member of groupID.
// A missing group is reported as false.
func (s *FamilyService) IsActiveMember(ctx context.Context, groupID, userID string) (bool, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return group.IsActiveMember(userID), nil
}

func (s *FamilyService) resolve(ctx context.Context, group *models.FamilyGroup) (*models.FamilyGroup, error) {
	if err := s.resolveMembers(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// resolveMembers fills member display names and emails with one user lookup.
func (s *FamilyService) resolveMembers(ctx context.Context, groups ...*models.FamilyGroup) error {
	var ids []string
	for _, g := range groups {
		for _, m := range g.Members {
			ids = append(ids, m.UserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, g := range groups {
		for i := range g.Members {
			if u, ok := users[g.Members[i].UserID]; ok {
				g.Members[i].DisplayName = u.DisplayName
				g.Members[i].Email = u.Email
			}
		}
	}
	return nil
}

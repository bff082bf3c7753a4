package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/storage"
)

// CreateGroup persists a new family group with its initial members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	// Generate ID if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO family_groups (id, name, owner_id, currency, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			group.ID, group.Name, group.Owner, group.Currency, group.CreatedAt, group.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		for i := range group.Members {
			m := &group.Members[i]
			if m.JoinedAt == 0 {
				m.JoinedAt = now
			}
			if err := insertMember(ctx, tx, group.ID, *m); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMember(ctx context.Context, q querier, groupID string, m models.Member) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO family_members (group_id, user_id, role, status, joined_at) VALUES (?, ?, ?, ?, ?)",
		groupID, m.UserID, string(m.Role), string(m.Status), m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// GetGroup retrieves a family group by ID, including members and invitations.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.FamilyGroup, error) {
	return getGroup(ctx, s.db, groupID)
}

func getGroup(ctx context.Context, q querier, groupID string) (*models.FamilyGroup, error) {
	group := &models.FamilyGroup{}
	err := q.QueryRowContext(ctx,
		"SELECT id, name, owner_id, currency, created_at, updated_at FROM family_groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Owner, &group.Currency, &group.CreatedAt, &group.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	members, err := listMembers(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	group.Members = members

	invitations, err := listInvitations(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	group.Invitations = invitations

	return group, nil
}

func listMembers(ctx context.Context, q querier, groupID string) ([]models.Member, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id, role, status, joined_at FROM family_members WHERE group_id = ? ORDER BY rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var m models.Member
		var role, status string
		if err := rows.Scan(&m.UserID, &role, &status, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = models.Role(role)
		m.Status = models.MemberStatus(status)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

func listInvitations(ctx context.Context, q querier, groupID string) ([]models.Invitation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, email, token, status, invited_by, expires_at, created_at
		 FROM family_invitations WHERE group_id = ? ORDER BY created_at, rowid`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitations: %w", err)
	}
	defer rows.Close()

	invitations := []models.Invitation{}
	for rows.Next() {
		var inv models.Invitation
		var status string
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Token, &status, &inv.InvitedBy, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		inv.Status = models.InvitationStatus(status)
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}
	return invitations, nil
}

// ListGroupsForUser retrieves every group the user belongs to, newest first.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id FROM family_groups g
		 JOIN family_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.created_at DESC, g.rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	groups := make([]*models.FamilyGroup, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// RenameGroup changes a group's display name.
func (s *SQLiteStore) RenameGroup(ctx context.Context, groupID, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE family_groups SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	return mustAffect(res, "group", groupID)
}

// DeleteGroup removes a group. Members, invitations, shared expenses and
// goals go with it through ON DELETE CASCADE.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM family_groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return mustAffect(res, "group", groupID)
}

// AddInvitation replaces any pending invitation for the same email with inv.
func (s *SQLiteStore) AddInvitation(ctx context.Context, groupID string, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt == 0 {
		inv.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM family_invitations WHERE group_id = ? AND email = ? AND status = ?",
			groupID, inv.Email, string(models.InvitationPending),
		)
		if err != nil {
			return fmt.Errorf("failed to supersede invitations: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO family_invitations (id, group_id, email, token, status, invited_by, expires_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, groupID, inv.Email, inv.Token, string(inv.Status), inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert invitation: %w", err)
		}
		return nil
	})
}

// AcceptInvitation consumes a pending invitation and adds the member.
func (s *SQLiteStore) AcceptInvitation(ctx context.Context, groupID, invitationID string, member models.Member) error {
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE family_invitations SET status = ? WHERE id = ? AND group_id = ? AND status = ?",
			string(models.InvitationAccepted), invitationID, groupID, string(models.InvitationPending),
		)
		if err != nil {
			return fmt.Errorf("failed to accept invitation: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("invitation %s no longer pending: %w", invitationID, storage.ErrConflict)
		}

		return insertMember(ctx, tx, groupID, member)
	})
}

// SetInvitationStatus moves a pending invitation to a terminal status.
func (s *SQLiteStore) SetInvitationStatus(ctx context.Context, invitationID string, status models.InvitationStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE family_invitations SET status = ? WHERE id = ? AND status = ?",
		string(status), invitationID, string(models.InvitationPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return mustAffect(res, "pending invitation", invitationID)
}

// ExpireInvitations marks overdue pending invitations as expired.
func (s *SQLiteStore) ExpireInvitations(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE family_invitations SET status = ? WHERE status = ? AND expires_at < ?",
		string(models.InvitationExpired), string(models.InvitationPending), now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// RemoveMember deletes a membership row.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM family_members WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return mustAffect(res, "member", userID)
}

// UpdateMemberRole changes a member's role.
func (s *SQLiteStore) UpdateMemberRole(ctx context.Context, groupID, userID string, role models.Role) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE family_members SET role = ? WHERE group_id = ? AND user_id = ?",
		string(role), groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return mustAffect(res, "member", userID)
}

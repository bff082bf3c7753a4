// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/familyfunds/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write lost to a concurrent
	// change, e.g. an invitation that was consumed in the meantime.
	ErrConflict = errors.New("conflict")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUsersByIDs returns the users that exist among ids, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// GroupStore persists family groups with their members and invitations.
type GroupStore interface {
	// CreateGroup persists a new group and its initial members.
	// group.ID and timestamps are populated by the store.
	CreateGroup(ctx context.Context, group *models.FamilyGroup) error

	// GetGroup loads a group with members and invitations.
	GetGroup(ctx context.Context, groupID string) (*models.FamilyGroup, error)

	// ListGroupsForUser returns every group userID is a member of, newest first.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error)

	RenameGroup(ctx context.Context, groupID, name string) error

	// DeleteGroup removes the group and everything that references it.
	DeleteGroup(ctx context.Context, groupID string) error

	// AddInvitation supersedes any pending invitation for the same email
	// on the group, then stores inv. inv.ID is populated by the store.
	AddInvitation(ctx context.Context, groupID string, inv *models.Invitation) error

	// AcceptInvitation atomically marks a pending invitation accepted and
	// appends member. Returns ErrConflict if the invitation is no longer pending.
	AcceptInvitation(ctx context.Context, groupID, invitationID string, member models.Member) error

	// SetInvitationStatus moves a pending invitation to status.
	SetInvitationStatus(ctx context.Context, invitationID string, status models.InvitationStatus) error

	// ExpireInvitations marks every pending invitation with expires_at < now
	// as expired and returns how many changed.
	ExpireInvitations(ctx context.Context, now int64) (int64, error)

	RemoveMember(ctx context.Context, groupID, userID string) error
	UpdateMemberRole(ctx context.Context, groupID, userID string, role models.Role) error
}

// ExpenseStore persists shared expenses and their splits.
type ExpenseStore interface {
	CreateSharedExpense(ctx context.Context, expense *models.SharedExpense) error
	GetSharedExpense(ctx context.Context, expenseID string) (*models.SharedExpense, error)

	// ListSharedExpenses returns a group's expenses in insertion order.
	ListSharedExpenses(ctx context.Context, groupID string) ([]*models.SharedExpense, error)

	// UpdateSplitStatus changes only the split row owned by userID.
	UpdateSplitStatus(ctx context.Context, expenseID, userID string, status models.SplitStatus) error

	DeleteSharedExpense(ctx context.Context, expenseID string) error
}

// GoalStore persists goals and their contributions.
type GoalStore interface {
	CreateGoal(ctx context.Context, goal *models.Goal) error
	GetGoal(ctx context.Context, goalID string) (*models.Goal, error)
	ListGoals(ctx context.Context, groupID string) ([]*models.Goal, error)

	// UpdateGoal overwrites the stored goal, contributions included, with goal.
	// It performs no concurrency check: two callers writing back copies read
	// at the same time will lose one caller's changes.
	UpdateGoal(ctx context.Context, goal *models.Goal) error

	// AddContribution appends c and increments the goal's current amount in a
	// single atomic step, returning the updated goal.
	AddContribution(ctx context.Context, goalID string, c *models.Contribution) (*models.Goal, error)

	DeleteGoal(ctx context.Context, goalID string) error
}

// Store defines the full set of storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	ExpenseStore
	GoalStore

	// Close releases any resources held by the store.
	Close() error
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/realtime"
	"github.com/mmynk/familyfunds/internal/storage"
)

// GoalService manages family savings goals.
type GoalService struct {
	store  storage.Store
	events Broadcaster
}

// NewGoalService creates a GoalService. A nil broadcaster disables
// realtime events.
func NewGoalService(store storage.Store, events Broadcaster) *GoalService {
	return &GoalService{store: store, events: orNoop(events)}
}

// CreateGoal creates an in-progress goal. deadline is a Unix timestamp,
// 0 for none.
func (s *GoalService) CreateGoal(ctx context.Context, userID, groupID, name string, target decimal.Decimal, deadline int64) (*models.Goal, error) {
	slog.Info("CreateGoal request received", "group_id", groupID, "user_id", userID)

	group, err := requireActiveMember(ctx, s.store, groupID, userID)
	if err != nil {
		return nil, err
	}
	name, err = cleanName("name", name)
	if err != nil {
		return nil, err
	}
	if err := positiveAmount("targetAmount", target); err != nil {
		return nil, err
	}
	if deadline < 0 {
		return nil, fmt.Errorf("%w: deadline must not be negative", ErrValidation)
	}

	goal := &models.Goal{
		FamilyGroupID: group.ID,
		Name:          name,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Deadline:      deadline,
		Status:        models.GoalInProgress,
		CreatedBy:     userID,
		Contributions: []models.Contribution{},
	}
	if err := s.store.CreateGoal(ctx, goal); err != nil {
		slog.Error("CreateGoal failed", "group_id", group.ID, "error", err)
		return nil, err
	}

	slog.Info("Goal created", "goal_id", goal.ID, "group_id", group.ID)
	return goal, nil
}

// ListGoals returns the group's goals with their contributions.
func (s *GoalService) ListGoals(ctx context.Context, userID, groupID string) ([]*models.Goal, error) {
	if _, err := requireActiveMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	goals, err := s.store.ListGoals(ctx, groupID)
	if err != nil {
		slog.Error("ListGoals failed", "group_id", groupID, "error", err)
		return nil, err
	}
	return goals, nil
}

// Contribute adds amount to the goal on behalf of userID. The append, the
// running total and the completion check happen in one store operation, so
// concurrent contributions are never lost.
func (s *GoalService) Contribute(ctx context.Context, userID, goalID string, amount decimal.Decimal) (*models.Goal, error) {
	slog.Info("Contribute request received", "goal_id", goalID, "user_id", userID, "amount", amount.String())

	if err := positiveAmount("amount", amount); err != nil {
		return nil, err
	}
	goal, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, notFound(err, "goal", goalID)
	}
	if _, err := requireActiveMember(ctx, s.store, goal.FamilyGroupID, userID); err != nil {
		return nil, err
	}

	updated, err := s.store.AddContribution(ctx, goalID, &models.Contribution{
		UserID: userID,
		Amount: amount,
	})
	if err != nil {
		slog.Error("Contribute failed", "goal_id", goalID, "error", err)
		return nil, notFound(err, "goal", goalID)
	}

	s.events.Broadcast(updated.FamilyGroupID, realtime.EventGoalUpdated, updated)

	slog.Info("Contribution recorded", "goal_id", goalID, "current_amount", updated.CurrentAmount.String(), "status", updated.Status)
	return updated, nil
}

// DeleteGoal removes a goal. Owner or admin of the goal's group only.
func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	slog.Info("DeleteGoal request received", "goal_id", goalID, "user_id", userID)

	goal, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return notFound(err, "goal", goalID)
	}
	group, err := loadGroup(ctx, s.store, goal.FamilyGroupID)
	if err != nil {
		return err
	}
	if !group.CanManage(userID) {
		return fmt.Errorf("%w: only an owner or admin can delete goals", ErrNotAuthorized)
	}

	if err := s.store.DeleteGoal(ctx, goalID); err != nil {
		return notFound(err, "goal", goalID)
	}
	return nil
}

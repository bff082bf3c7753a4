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

const goalColumns = "id, group_id, name, target_amount, current_amount, deadline, status, created_by, created_at"

// CreateGoal persists a new goal.
func (s *SQLiteStore) CreateGoal(ctx context.Context, goal *models.Goal) error {
	if goal.ID == "" {
		goal.ID = uuid.New().String()
	}
	if goal.CreatedAt == 0 {
		goal.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO goals ("+goalColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		goal.ID, goal.FamilyGroupID, goal.Name, goal.TargetAmount, goal.CurrentAmount,
		goal.Deadline, string(goal.Status), goal.CreatedBy, goal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal with its contributions.
func (s *SQLiteStore) GetGoal(ctx context.Context, goalID string) (*models.Goal, error) {
	return getGoal(ctx, s.db, goalID)
}

func getGoal(ctx context.Context, q querier, goalID string) (*models.Goal, error) {
	row := q.QueryRowContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = ?", goalID)
	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", goalID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	contributions, err := listContributions(ctx, q, goalID)
	if err != nil {
		return nil, err
	}
	goal.Contributions = contributions
	return goal, nil
}

// ListGoals retrieves a group's goals, oldest first.
func (s *SQLiteStore) ListGoals(ctx context.Context, groupID string) ([]*models.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE group_id = ? ORDER BY created_at, rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	goals := []*models.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}

	for _, goal := range goals {
		contributions, err := listContributions(ctx, s.db, goal.ID)
		if err != nil {
			return nil, err
		}
		goal.Contributions = contributions
	}
	return goals, nil
}

func listContributions(ctx context.Context, q querier, goalID string) ([]models.Contribution, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, user_id, amount, date FROM goal_contributions WHERE goal_id = ? ORDER BY date, rowid",
		goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contributions: %w", err)
	}
	defer rows.Close()

	contributions := []models.Contribution{}
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.ID, &c.UserID, &c.Amount, &c.Date); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}
	return contributions, nil
}

// UpdateGoal writes the whole goal back, replacing its contribution list.
func (s *SQLiteStore) UpdateGoal(ctx context.Context, goal *models.Goal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE goals SET name = ?, target_amount = ?, current_amount = ?, deadline = ?, status = ?
			 WHERE id = ?`,
			goal.Name, goal.TargetAmount, goal.CurrentAmount, goal.Deadline, string(goal.Status), goal.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update goal: %w", err)
		}
		if err := mustAffect(res, "goal", goal.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM goal_contributions WHERE goal_id = ?", goal.ID); err != nil {
			return fmt.Errorf("failed to clear contributions: %w", err)
		}
		for i := range goal.Contributions {
			if err := insertContribution(ctx, tx, goal.ID, &goal.Contributions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddContribution appends a contribution and updates the running total and
// status inside one transaction.
func (s *SQLiteStore) AddContribution(ctx context.Context, goalID string, c *models.Contribution) (*models.Goal, error) {
	var goal *models.Goal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		goal, err = getGoal(ctx, tx, goalID)
		if err != nil {
			return err
		}

		if err := insertContribution(ctx, tx, goalID, c); err != nil {
			return err
		}
		goal.Apply(*c)

		_, err = tx.ExecContext(ctx,
			"UPDATE goals SET current_amount = ?, status = ? WHERE id = ?",
			goal.CurrentAmount, string(goal.Status), goalID,
		)
		if err != nil {
			return fmt.Errorf("failed to update goal total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func insertContribution(ctx context.Context, q querier, goalID string, c *models.Contribution) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Date == 0 {
		c.Date = time.Now().Unix()
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO goal_contributions (id, goal_id, user_id, amount, date) VALUES (?, ?, ?, ?, ?)",
		c.ID, goalID, c.UserID, c.Amount, c.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}
	return nil
}

// DeleteGoal removes a goal and its contributions.
func (s *SQLiteStore) DeleteGoal(ctx context.Context, goalID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", goalID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return mustAffect(res, "goal", goalID)
}

func scanGoal(row scanner) (*models.Goal, error) {
	goal := &models.Goal{}
	var status string
	err := row.Scan(
		&goal.ID,
		&goal.FamilyGroupID,
		&goal.Name,
		&goal.TargetAmount,
		&goal.CurrentAmount,
		&goal.Deadline,
		&status,
		&goal.CreatedBy,
		&goal.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	goal.Status = models.GoalStatus(status)
	return goal, nil
}

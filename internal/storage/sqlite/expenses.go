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

const expenseColumns = "id, group_id, paid_by, amount, category, description, date, split_type, created_at"

// CreateSharedExpense persists a new shared expense and its splits.
func (s *SQLiteStore) CreateSharedExpense(ctx context.Context, expense *models.SharedExpense) error {
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO shared_expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			expense.ID, expense.FamilyGroupID, expense.PaidBy, expense.Amount,
			expense.Category, expense.Description, expense.Date, string(expense.SplitType), expense.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert shared expense: %w", err)
		}

		for i, split := range expense.Splits {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO expense_splits (expense_id, position, user_id, amount, percentage, status)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				expense.ID, i, split.UserID, split.Amount, split.Percentage, string(split.Status),
			)
			if err != nil {
				return fmt.Errorf("failed to insert split: %w", err)
			}
		}
		return nil
	})
}

// GetSharedExpense retrieves a shared expense by ID, including splits.
func (s *SQLiteStore) GetSharedExpense(ctx context.Context, expenseID string) (*models.SharedExpense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM shared_expenses WHERE id = ?",
		expenseID,
	)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shared expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shared expense: %w", err)
	}

	splits, err := s.listSplits(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	expense.Splits = splits
	return expense, nil
}

// ListSharedExpenses retrieves a group's expenses in the order they were recorded.
func (s *SQLiteStore) ListSharedExpenses(ctx context.Context, groupID string) ([]*models.SharedExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM shared_expenses WHERE group_id = ? ORDER BY created_at, rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared expenses: %w", err)
	}

	expenses := []*models.SharedExpense{}
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan shared expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate shared expenses: %w", err)
	}

	// Splits are loaded after the expense rows are closed; the store holds a
	// single connection.
	for _, expense := range expenses {
		splits, err := s.listSplits(ctx, expense.ID)
		if err != nil {
			return nil, err
		}
		expense.Splits = splits
	}
	return expenses, nil
}

func (s *SQLiteStore) listSplits(ctx context.Context, expenseID string) ([]models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, amount, percentage, status FROM expense_splits WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	splits := []models.Split{}
	for rows.Next() {
		var split models.Split
		var status string
		if err := rows.Scan(&split.UserID, &split.Amount, &split.Percentage, &status); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Status = models.SplitStatus(status)
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// UpdateSplitStatus changes the status of the split owned by userID.
// No other split row is touched.
func (s *SQLiteStore) UpdateSplitStatus(ctx context.Context, expenseID, userID string, status models.SplitStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE expense_splits SET status = ? WHERE expense_id = ? AND user_id = ?",
		string(status), expenseID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split status: %w", err)
	}
	return mustAffect(res, "split", expenseID+"/"+userID)
}

// DeleteSharedExpense removes an expense and its splits.
func (s *SQLiteStore) DeleteSharedExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM shared_expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete shared expense: %w", err)
	}
	return mustAffect(res, "shared expense", expenseID)
}

func scanExpense(row scanner) (*models.SharedExpense, error) {
	expense := &models.SharedExpense{}
	var splitType string
	err := row.Scan(
		&expense.ID,
		&expense.FamilyGroupID,
		&expense.PaidBy,
		&expense.Amount,
		&expense.Category,
		&expense.Description,
		&expense.Date,
		&splitType,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	expense.SplitType = models.SplitType(splitType)
	return expense, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/familyfunds/internal/calculator"
	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/realtime"
	"github.com/mmynk/familyfunds/internal/storage"
)

// ExpenseService manages shared expenses and their splits.
type ExpenseService struct {
	store  storage.Store
	events Broadcaster
}

// NewExpenseService creates an ExpenseService. A nil broadcaster disables
// realtime events.
func NewExpenseService(store storage.Store, events Broadcaster) *ExpenseService {
	return &ExpenseService{store: store, events: orNoop(events)}
}

// SplitInput is a caller-supplied share. Percentage is read for percentage
// splits, Amount for custom splits; for equal splits only UserID is used.
type SplitInput struct {
	UserID     string
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// CreateExpenseInput describes a new shared expense.
type CreateExpenseInput struct {
	FamilyGroupID string
	Amount        decimal.Decimal
	Category      string
	Description   string
	Date          int64
	SplitType     models.SplitType
	Splits        []SplitInput
}

// CreateSharedExpense records an expense paid by userID.
//
// Equal splits without explicit users are divided across every active member.
// Percentage and custom splits need caller-supplied shares. All split users
// must be distinct active members and every split starts pending.
func (s *ExpenseService) CreateSharedExpense(ctx context.Context, userID string, in CreateExpenseInput) (*models.SharedExpense, error) {
	slog.Info("CreateSharedExpense request received",
		"group_id", in.FamilyGroupID,
		"user_id", userID,
		"split_type", in.SplitType,
		"splits_count", len(in.Splits),
	)

	group, err := requireActiveMember(ctx, s.store, in.FamilyGroupID, userID)
	if err != nil {
		return nil, err
	}

	if err := positiveAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if !in.SplitType.Valid() {
		return nil, fmt.Errorf("%w: splitType must be equal, percentage or custom", ErrValidation)
	}
	category, err := cleanName("category", in.Category)
	if err != nil {
		return nil, err
	}
	if in.Date < 0 {
		return nil, fmt.Errorf("%w: date must not be negative", ErrValidation)
	}
	if err := checkSplitUsers(group, in.Splits); err != nil {
		return nil, err
	}

	shares, err := computeShares(group, in)
	if err != nil {
		return nil, err
	}

	expense := &models.SharedExpense{
		FamilyGroupID: group.ID,
		PaidBy:        userID,
		Amount:        in.Amount,
		Category:      category,
		Description:   strings.TrimSpace(in.Description),
		Date:          in.Date,
		SplitType:     in.SplitType,
		Splits:        make([]models.Split, len(shares)),
	}
	for i, sh := range shares {
		expense.Splits[i] = models.Split{
			UserID:     sh.UserID,
			Amount:     sh.Amount,
			Percentage: sh.Percentage,
			Status:     models.SplitPending,
		}
	}

	if err := s.store.CreateSharedExpense(ctx, expense); err != nil {
		slog.Error("CreateSharedExpense failed", "group_id", group.ID, "error", err)
		return nil, err
	}
	if err := s.resolveNames(ctx, expense); err != nil {
		return nil, err
	}

	s.events.Broadcast(group.ID, realtime.EventSharedExpenseCreated, expense)

	slog.Info("Shared expense created", "expense_id", expense.ID, "group_id", group.ID)
	return expense, nil
}

func checkSplitUsers(group *models.FamilyGroup, splits []SplitInput) error {
	seen := make(map[string]bool, len(splits))
	for _, sp := range splits {
		if sp.UserID == "" {
			return fmt.Errorf("%w: every split needs a userId", ErrValidation)
		}
		if seen[sp.UserID] {
			return fmt.Errorf("%w: user %s appears in more than one split", ErrValidation, sp.UserID)
		}
		seen[sp.UserID] = true
		if !group.IsActiveMember(sp.UserID) {
			return fmt.Errorf("%w: user %s is not an active member", ErrValidation, sp.UserID)
		}
	}
	return nil
}

func computeShares(group *models.FamilyGroup, in CreateExpenseInput) ([]calculator.Share, error) {
	places := currencyPlaces(group.Currency)

	switch in.SplitType {
	case models.SplitEqual:
		members := group.ActiveMemberIDs()
		if len(in.Splits) > 0 {
			members = make([]string, len(in.Splits))
			for i, sp := range in.Splits {
				members[i] = sp.UserID
			}
		}
		shares, err := calculator.EqualSplit(in.Amount, members, places)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return shares, nil

	case models.SplitPercentage:
		if len(in.Splits) == 0 {
			return nil, fmt.Errorf("%w: percentage splits must be supplied", ErrValidation)
		}
		inputs := make([]calculator.PercentageInput, len(in.Splits))
		for i, sp := range in.Splits {
			inputs[i] = calculator.PercentageInput{UserID: sp.UserID, Percentage: sp.Percentage}
		}
		shares, err := calculator.PercentageSplit(in.Amount, inputs, places)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return shares, nil

	default:
		if len(in.Splits) == 0 {
			return nil, fmt.Errorf("%w: custom splits must be supplied", ErrValidation)
		}
		shares := make([]calculator.Share, len(in.Splits))
		for i, sp := range in.Splits {
			if sp.Amount.IsNegative() {
				return nil, fmt.Errorf("%w: split amount for %s must not be negative", ErrValidation, sp.UserID)
			}
			shares[i] = calculator.Share{UserID: sp.UserID, Amount: sp.Amount}
		}
		return shares, nil
	}
}

// ListSharedExpenses returns the group's expenses in creation order.
func (s *ExpenseService) ListSharedExpenses(ctx context.Context, userID, groupID string) ([]*models.SharedExpense, error) {
	if _, err := requireActiveMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}

	expenses, err := s.store.ListSharedExpenses(ctx, groupID)
	if err != nil {
		slog.Error("ListSharedExpenses failed", "group_id", groupID, "error", err)
		return nil, err
	}
	if err := s.resolveNames(ctx, expenses...); err != nil {
		return nil, err
	}
	return expenses, nil
}

// UpdateSplitStatus sets the status of userID's own split on the expense.
// Other splits are never touched.
func (s *ExpenseService) UpdateSplitStatus(ctx context.Context, userID, expenseID string, status models.SplitStatus) (*models.SharedExpense, error) {
	slog.Info("UpdateSplitStatus request received", "expense_id", expenseID, "user_id", userID, "status", status)

	if !status.Valid() {
		return nil, fmt.Errorf("%w: status must be pending, paid or rejected", ErrValidation)
	}
	expense, err := s.store.GetSharedExpense(ctx, expenseID)
	if err != nil {
		return nil, notFound(err, "shared expense", expenseID)
	}
	if _, ok := expense.Split(userID); !ok {
		return nil, fmt.Errorf("%w: no split for this user on the expense", ErrNotAuthorized)
	}

	if err := s.store.UpdateSplitStatus(ctx, expenseID, userID, status); err != nil {
		slog.Error("UpdateSplitStatus failed", "expense_id", expenseID, "error", err)
		return nil, notFound(err, "split", userID)
	}

	updated, err := s.store.GetSharedExpense(ctx, expenseID)
	if err != nil {
		return nil, notFound(err, "shared expense", expenseID)
	}
	if err := s.resolveNames(ctx, updated); err != nil {
		return nil, err
	}

	s.events.Broadcast(updated.FamilyGroupID, realtime.EventSharedExpenseSplitUpdated, updated)
	return updated, nil
}

// DeleteSharedExpense removes an expense. Allowed for the payer and for
// group owners and admins.
func (s *ExpenseService) DeleteSharedExpense(ctx context.Context, userID, expenseID string) error {
	slog.Info("DeleteSharedExpense request received", "expense_id", expenseID, "user_id", userID)

	expense, err := s.store.GetSharedExpense(ctx, expenseID)
	if err != nil {
		return notFound(err, "shared expense", expenseID)
	}
	if expense.PaidBy != userID {
		group, err := loadGroup(ctx, s.store, expense.FamilyGroupID)
		if err != nil {
			return err
		}
		if !group.CanManage(userID) {
			return fmt.Errorf("%w: only the payer or a group admin can delete this expense", ErrNotAuthorized)
		}
	}

	if err := s.store.DeleteSharedExpense(ctx, expenseID); err != nil {
		return notFound(err, "shared expense", expenseID)
	}

	s.events.Broadcast(expense.FamilyGroupID, realtime.EventSharedExpenseDeleted, map[string]string{
		"familyGroupId": expense.FamilyGroupID,
		"expenseId":     expenseID,
	})
	return nil
}

// MemberBalance is one member's outstanding position in a group.
type MemberBalance struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName,omitempty"`
	NetBalance  decimal.Decimal `json:"netBalance"`
	TotalPaid   decimal.Decimal `json:"totalPaid"`
	TotalOwed   decimal.Decimal `json:"totalOwed"`
	Display     string          `json:"display"`
}

// Debt is one simplified payment that settles part of the group's balances.
type Debt struct {
	From     string          `json:"from"`
	FromName string          `json:"fromName,omitempty"`
	To       string          `json:"to"`
	ToName   string          `json:"toName,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Display  string          `json:"display"`
}

// GroupBalances summarizes who owes whom across a group's unsettled splits.
type GroupBalances struct {
	FamilyGroupID string          `json:"familyGroupId"`
	Currency      string          `json:"currency"`
	Members       []MemberBalance `json:"members"`
	Debts         []Debt          `json:"debts"`
}

// GetBalances computes outstanding balances for the group. A pending split
// owed by someone other than the payer is a debt to the payer; paid and
// rejected splits are settled.
func (s *ExpenseService) GetBalances(ctx context.Context, userID, groupID string) (*GroupBalances, error) {
	slog.Info("GetBalances request received", "group_id", groupID, "user_id", userID)

	group, err := requireActiveMember(ctx, s.store, groupID, userID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListSharedExpenses(ctx, groupID)
	if err != nil {
		slog.Error("GetBalances failed - could not list expenses", "group_id", groupID, "error", err)
		return nil, err
	}

	calcExpenses := make([]calculator.ExpenseForBalance, len(expenses))
	for i, e := range expenses {
		splits := make([]calculator.SplitForBalance, len(e.Splits))
		for j, sp := range e.Splits {
			splits[j] = calculator.SplitForBalance{
				UserID:  sp.UserID,
				Amount:  sp.Amount,
				Settled: sp.Status != models.SplitPending,
			}
		}
		calcExpenses[i] = calculator.ExpenseForBalance{PaidBy: e.PaidBy, Splits: splits}
	}

	balances, debts := calculator.CalculateGroupBalances(group.ActiveMemberIDs(), calcExpenses)

	ids := make([]string, 0, len(balances))
	for _, b := range balances {
		ids = append(ids, b.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	name := func(id string) string {
		if u, ok := users[id]; ok {
			return u.DisplayName
		}
		return ""
	}

	result := &GroupBalances{
		FamilyGroupID: group.ID,
		Currency:      group.Currency,
		Members:       make([]MemberBalance, len(balances)),
		Debts:         make([]Debt, len(debts)),
	}
	for i, b := range balances {
		result.Members[i] = MemberBalance{
			UserID:      b.UserID,
			DisplayName: name(b.UserID),
			NetBalance:  b.NetBalance,
			TotalPaid:   b.TotalPaid,
			TotalOwed:   b.TotalOwed,
			Display:     formatAmount(b.NetBalance, group.Currency),
		}
	}
	for i, d := range debts {
		result.Debts[i] = Debt{
			From:     d.From,
			FromName: name(d.From),
			To:       d.To,
			ToName:   name(d.To),
			Amount:   d.Amount,
			Display:  formatAmount(d.Amount, group.Currency),
		}
	}

	slog.Info("GetBalances successful", "group_id", groupID, "debts_count", len(debts))
	return result, nil
}

// resolveNames fills payer and split user names with one user lookup.
func (s *ExpenseService) resolveNames(ctx context.Context, expenses ...*models.SharedExpense) error {
	var ids []string
	for _, e := range expenses {
		ids = append(ids, e.PaidBy)
		for _, sp := range e.Splits {
			ids = append(ids, sp.UserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, e := range expenses {
		if u, ok := users[e.PaidBy]; ok {
			e.PaidByName = u.DisplayName
		}
		for i := range e.Splits {
			if u, ok := users[e.Splits[i].UserID]; ok {
				e.Splits[i].UserName = u.DisplayName
			}
		}
	}
	return nil
}

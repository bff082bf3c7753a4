package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ExpenseForBalance is the minimal view of a shared expense needed for balances.
type ExpenseForBalance struct {
	PaidBy string
	Splits []SplitForBalance
}

// SplitForBalance is one split's contribution to balances. Settled marks
// splits that no longer create a debt (paid or rejected).
type SplitForBalance struct {
	UserID  string
	Amount  decimal.Decimal
	Settled bool
}

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	UserID     string
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
	TotalPaid  decimal.Decimal // Outstanding amount others owe this member
	TotalOwed  decimal.Decimal // Outstanding amount this member owes others
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount decimal.Decimal
}

// CalculateGroupBalances computes outstanding balances across expenses.
//
// Algorithm:
//   - For each unsettled split whose user is not the payer, the split user
//     owes the payer the split amount
//   - net_balance = total_paid - total_owed
//   - Debt list: simplified using greedy matching of the largest creditor
//     against the largest debtor
//
// Members listed in members appear in the result even with a zero balance.
func CalculateGroupBalances(members []string, expenses []ExpenseForBalance) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)
	order := make([]string, 0, len(members))

	get := func(userID string) *MemberBalance {
		b, ok := balances[userID]
		if !ok {
			b = &MemberBalance{UserID: userID}
			balances[userID] = b
			order = append(order, userID)
		}
		return b
	}
	for _, m := range members {
		get(m)
	}

	for _, expense := range expenses {
		for _, split := range expense.Splits {
			if split.Settled || split.UserID == expense.PaidBy {
				continue
			}
			payer := get(expense.PaidBy)
			debtor := get(split.UserID)
			payer.TotalPaid = payer.TotalPaid.Add(split.Amount)
			debtor.TotalOwed = debtor.TotalOwed.Add(split.Amount)
		}
	}

	result := make([]MemberBalance, 0, len(order))
	for _, userID := range order {
		b := balances[userID]
		b.NetBalance = b.TotalPaid.Sub(b.TotalOwed)
		result = append(result, *b)
	}

	return result, simplifyDebts(result)
}

// simplifyDebts matches creditors against debtors greedily, largest first.
func simplifyDebts(balances []MemberBalance) []DebtEdge {
	type entry struct {
		userID string
		amount decimal.Decimal
	}
	var creditors, debtors []entry
	for _, b := range balances {
		switch {
		case b.NetBalance.IsPositive():
			creditors = append(creditors, entry{b.UserID, b.NetBalance})
		case b.NetBalance.IsNegative():
			debtors = append(debtors, entry{b.UserID, b.NetBalance.Neg()})
		}
	}
	byAmount := func(s []entry) func(i, j int) bool {
		return func(i, j int) bool {
			if c := s[i].amount.Cmp(s[j].amount); c != 0 {
				return c > 0
			}
			return s[i].userID < s[j].userID
		}
	}
	sort.SliceStable(creditors, byAmount(creditors))
	sort.SliceStable(debtors, byAmount(debtors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := decimal.Min(creditors[i].amount, debtors[j].amount)
		edges = append(edges, DebtEdge{From: debtors[j].userID, To: creditors[i].userID, Amount: amount})

		creditors[i].amount = creditors[i].amount.Sub(amount)
		debtors[j].amount = debtors[j].amount.Sub(amount)
		if creditors[i].amount.IsZero() {
			i++
		}
		if debtors[j].amount.IsZero() {
			j++
		}
	}
	return edges
}

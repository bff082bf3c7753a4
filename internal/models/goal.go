package models

import "github.com/shopspring/decimal"

// GoalStatus is the progress state of a goal.
type GoalStatus string

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
)

// Goal is a savings target for a family group.
//
// CurrentAmount is the running sum of Contributions. Status moves from
// in_progress to completed once CurrentAmount reaches TargetAmount and
// never moves back.
type Goal struct {
	ID            string          `json:"id"`
	FamilyGroupID string          `json:"familyGroupId"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`

	// Deadline is a Unix timestamp, 0 when the goal has none.
	Deadline int64 `json:"deadline,omitempty"`

	Status        GoalStatus     `json:"status"`
	CreatedBy     string         `json:"createdBy"`
	Contributions []Contribution `json:"contributions"`
	CreatedAt     int64          `json:"createdAt"`
}

// Contribution is one member's deposit toward a goal.
type Contribution struct {
	ID     string          `json:"id"`
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
	Date   int64           `json:"date"`
}

// Apply adds a contribution to the goal in memory, maintaining
// CurrentAmount and the one-way completion transition.
func (g *Goal) Apply(c Contribution) {
	g.Contributions = append(g.Contributions, c)
	g.CurrentAmount = g.CurrentAmount.Add(c.Amount)
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.Status = GoalCompleted
	}
}

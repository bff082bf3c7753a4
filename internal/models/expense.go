package models

import "github.com/shopspring/decimal"

// SplitType selects how a shared expense is divided.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitPercentage SplitType = "percentage"
	SplitCustom     SplitType = "custom"
)

// Valid reports whether t is a known split type.
func (t SplitType) Valid() bool {
	switch t {
	case SplitEqual, SplitPercentage, SplitCustom:
		return true
	}
	return false
}

// SplitStatus is the settlement state of one split.
type SplitStatus string

const (
	SplitPending  SplitStatus = "pending"
	SplitPaid     SplitStatus = "paid"
	SplitRejected SplitStatus = "rejected"
)

// Valid reports whether s is a known split status.
func (s SplitStatus) Valid() bool {
	switch s {
	case SplitPending, SplitPaid, SplitRejected:
		return true
	}
	return false
}

// SharedExpense is an expense paid by one member and divided among members.
type SharedExpense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// FamilyGroupID is the group the expense belongs to.
	FamilyGroupID string `json:"familyGroupId"`

	// PaidBy is the user ID of the member who paid.
	PaidBy string `json:"paidBy"`

	// PaidByName is resolved on read.
	PaidByName string `json:"paidByName,omitempty"`

	// Amount is the total paid. Always positive.
	Amount decimal.Decimal `json:"amount"`

	Category    string `json:"category"`
	Description string `json:"description"`

	// Date is the Unix timestamp the expense occurred at.
	Date int64 `json:"date"`

	SplitType SplitType `json:"splitType"`

	// Splits are the per-member shares. Their sum is only guaranteed to
	// equal Amount for equal and percentage splits.
	Splits []Split `json:"splits"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"createdAt"`
}

// Split is one member's portion of a shared expense.
type Split struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`

	// Percentage is set only for percentage splits.
	Percentage decimal.NullDecimal `json:"percentage"`

	Status SplitStatus `json:"status"`

	// UserName is resolved on read.
	UserName string `json:"userName,omitempty"`
}

// Split returns the split belonging to userID, if any.
func (e *SharedExpense) Split(userID string) (*Split, bool) {
	for i := range e.Splits {
		if e.Splits[i].UserID == userID {
			return &e.Splits[i], true
		}
	}
	return nil, false
}

package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/service"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", service.ErrValidation, field)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (r *registerRequest) validate() error {
	return firstErr(
		required("email", r.Email),
		required("password", r.Password),
		required("displayName", r.DisplayName),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) validate() error {
	return firstErr(required("email", r.Email), required("password", r.Password))
}

type createGroupRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

func (r *createGroupRequest) validate() error {
	return required("name", r.Name)
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

func (r *renameGroupRequest) validate() error {
	return required("name", r.Name)
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (r *inviteRequest) validate() error {
	return required("email", r.Email)
}

type joinRequest struct {
	Token    string `json:"token"`
	FamilyID string `json:"familyId"`
}

func (r *joinRequest) validate() error {
	return firstErr(required("token", r.Token), required("familyId", r.FamilyID))
}

type updateRoleRequest struct {
	Role models.Role `json:"role"`
}

func (r *updateRoleRequest) validate() error {
	return required("role", string(r.Role))
}

type splitRequest struct {
	UserID     string           `json:"userId"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

type createExpenseRequest struct {
	FamilyGroupID string           `json:"familyGroupId"`
	Amount        *decimal.Decimal `json:"amount"`
	Category      string           `json:"category"`
	Description   string           `json:"description"`
	Date          int64            `json:"date,omitempty"`
	SplitType     models.SplitType `json:"splitType"`
	Splits        []splitRequest   `json:"splits,omitempty"`
}

func (r *createExpenseRequest) validate() error {
	if err := firstErr(
		required("familyGroupId", r.FamilyGroupID),
		required("category", r.Category),
		required("splitType", string(r.SplitType)),
	); err != nil {
		return err
	}
	if r.Amount == nil {
		return fmt.Errorf("%w: amount is required", service.ErrValidation)
	}
	for i, sp := range r.Splits {
		if err := required(fmt.Sprintf("splits[%d].userId", i), sp.UserID); err != nil {
			return err
		}
		switch r.SplitType {
		case models.SplitPercentage:
			if sp.Percentage == nil {
				return fmt.Errorf("%w: splits[%d].percentage is required", service.ErrValidation, i)
			}
		case models.SplitCustom:
			if sp.Amount == nil {
				return fmt.Errorf("%w: splits[%d].amount is required", service.ErrValidation, i)
			}
		}
	}
	return nil
}

func (r *createExpenseRequest) input() service.CreateExpenseInput {
	in := service.CreateExpenseInput{
		FamilyGroupID: r.FamilyGroupID,
		Amount:        *r.Amount,
		Category:      r.Category,
		Description:   r.Description,
		Date:          r.Date,
		SplitType:     r.SplitType,
	}
	for _, sp := range r.Splits {
		s := service.SplitInput{UserID: sp.UserID}
		if sp.Amount != nil {
			s.Amount = *sp.Amount
		}
		if sp.Percentage != nil {
			s.Percentage = *sp.Percentage
		}
		in.Splits = append(in.Splits, s)
	}
	return in
}

type updateSplitRequest struct {
	Status models.SplitStatus `json:"status"`
}

func (r *updateSplitRequest) validate() error {
	return required("status", string(r.Status))
}

type createGoalRequest struct {
	FamilyGroupID string           `json:"familyGroupId"`
	Name          string           `json:"name"`
	TargetAmount  *decimal.Decimal `json:"targetAmount"`
	Deadline      int64            `json:"deadline,omitempty"`
}

func (r *createGoalRequest) validate() error {
	if err := firstErr(required("familyGroupId", r.FamilyGroupID), required("name", r.Name)); err != nil {
		return err
	}
	if r.TargetAmount == nil {
		return fmt.Errorf("%w: targetAmount is required", service.ErrValidation)
	}
	return nil
}

type contributeRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (r *contributeRequest) validate() error {
	if r.Amount == nil {
		return fmt.Errorf("%w: amount is required", service.ErrValidation)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/storage"
)

const (
	maxNameLength   = 100
	defaultCurrency = money.USD
)

func cleanName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return "", fmt.Errorf("%w: %s must not contain control characters", ErrValidation, field)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, maxNameLength)
	}
	return name, nil
}

// cleanEmail normalizes and syntax-checks a bare address.
func cleanEmail(email string) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	return email, nil
}

// cleanCurrency upper-cases code and checks it against the ISO 4217 table.
// Empty means the default currency.
func cleanCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return defaultCurrency, nil
	}
	if money.GetCurrency(code) == nil {
		return "", fmt.Errorf("%w: unknown currency %q", ErrValidation, code)
	}
	return code, nil
}

// currencyPlaces returns the number of minor-unit digits for code.
func currencyPlaces(code string) int32 {
	if c := money.GetCurrency(code); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// formatAmount renders amount in the group's currency, e.g. "$12.50".
func formatAmount(amount decimal.Decimal, code string) string {
	places := currencyPlaces(code)
	minor := amount.Shift(places).Round(0).IntPart()
	return money.New(minor, code).Display()
}

func positiveAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidation, field)
	}
	return nil
}

// loadGroup fetches a group, translating storage misses into ErrNotFound.
func loadGroup(ctx context.Context, store storage.GroupStore, groupID string) (*models.FamilyGroup, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: familyGroupId is required", ErrValidation)
	}
	group, err := store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: family group %s", ErrNotFound, groupID)
	}
	if err != nil {
		return nil, err
	}
	return group, nil
}

// requireActiveMember loads the group and checks userID is an active member.
func requireActiveMember(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.FamilyGroup, error) {
	group, err := loadGroup(ctx, store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActiveMember(userID) {
		return nil, fmt.Errorf("%w: not a member of this family group", ErrNotAuthorized)
	}
	return group, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return err
}

// Package models defines the core domain models for familyfunds.
//
// # Models
//
//   - User: registered account, identified by a UUID and a unique email
//   - FamilyGroup: a named set of members sharing expenses and goals,
//     with exactly one owner, plus its pending and past invitations
//   - SharedExpense: an expense paid by one member and split across members,
//     each split carrying its own settlement status
//   - Goal: a savings target scoped to a family group, funded by contributions
//
// # Design Principles
//
//  1. Relationships are ID strings, never pointers, so models can be
//     loaded and persisted independently.
//  2. Amounts are decimal.Decimal; timestamps are Unix seconds.
//  3. Secrets (password hashes, invitation tokens) are never serialized.
//  4. Display fields (names, emails) resolved from other records are filled
//     on read and are not persisted with the owning record.
package models

package service

import "errors"

// Sentinel errors returned by every service. Callers match with errors.Is;
// the HTTP layer maps each one to a status code.
var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyMember     = errors.New("already a member")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInvitation = errors.New("invalid invitation")
	ErrInvitationExpired = errors.New("invitation expired")
)

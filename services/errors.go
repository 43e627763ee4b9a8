package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	// Validation and business rules
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserAlreadyMember  = errors.New("user is already a member of the team")
	ErrUserNotMember      = errors.New("user is not a member of the team")
	ErrTeamFull           = errors.New("team already has the maximum number of members")
	ErrSameTeam           = errors.New("a game needs two different teams")
	ErrOwnerCannotLeave   = errors.New("the team owner cannot be removed from the team")

	// Conflicts
	ErrUsernameConflict    = errors.New("username is already in use")
	ErrEmailConflict       = errors.New("email address is already in use")
	ErrPhoneConflict       = errors.New("phone number is already in use")
	ErrOwnerHasTeam        = errors.New("user already owns a team")
	ErrInviteAlreadySent   = errors.New("invite already sent")
	ErrJoinRequestConflict = errors.New("join request already sent")

	// Authorization
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrOwnerActionForbidden = errors.New("only the team owner can perform this action")

	// Missing resources
	ErrUserNotFound        = errors.New("user not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrGameNotFound        = errors.New("game not found")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrJoinRequestNotFound = errors.New("join request not found")
)

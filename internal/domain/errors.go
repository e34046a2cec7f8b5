package domain

import "errors"

// Domain errors
var (
	ErrHandleTaken        = errors.New("handle already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamExists         = errors.New("team already exists")
	ErrInvalidScore       = errors.New("invalid score value")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrScoreConflict      = errors.New("score update conflict")
	ErrServiceBusy        = errors.New("service busy, retry later")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrTeamNotFound)
}

// IsAuthError checks if an error should surface as an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired)
}

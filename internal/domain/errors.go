package domain

import "errors"

var (
	// ErrInvalidState is returned when a quiz operation is not allowed in the current phase.
	ErrInvalidState = errors.New("operation not allowed in current quiz state")
	// ErrConfiguration indicates malformed tournament data (no questions, bad passing percentage, bad dates).
	ErrConfiguration = errors.New("tournament cannot be played")
	// ErrNetwork indicates a load or submit call to the API failed.
	ErrNetwork = errors.New("network failure")
	// ErrAlreadySubmitted marks a repeated submit. It is logged, never returned.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrUnknownOption is returned when a selection is not one of the question's options.
	ErrUnknownOption = errors.New("option not offered by question")
	// ErrNotFound is returned when the API has no such resource.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the session has no valid token.
	ErrUnauthorized = errors.New("not logged in")
	// ErrForbidden is returned when the session lacks the required role.
	ErrForbidden = errors.New("operation not allowed for the current user")
	// ErrRequestRejected is returned for other 4xx responses.
	ErrRequestRejected = errors.New("request rejected by api")
	// ErrValidation indicates invalid admin form input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidDateRange indicates an end date that is not after the start date.
	ErrInvalidDateRange = errors.New("tournament end date must be after start date")
	// ErrTournamentLocked is returned when editing a completed tournament.
	ErrTournamentLocked = errors.New("completed tournaments cannot be edited")
	// ErrSessionNotFound is returned when a play session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
)

// ErrorKind maps an error to a stable identifier for clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrUnknownOption):
		return "unknown_option"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidDateRange), errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTournamentLocked):
		return "locked"
	case errors.Is(err, ErrRequestRejected):
		return "rejected"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	}
	return "internal"
}

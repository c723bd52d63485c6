package domain

import "errors"

// Failure taxonomy for realtime operations. Authentication errors abort
// the connection before it goes active; everything else is scoped to the
// single operation that triggered it.
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrPrincipalNotFound  = errors.New("user not found")
	ErrAccessDenied       = errors.New("conversation not found or access denied")
	ErrInvalidMessage     = errors.New("invalid message data")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrBrokerUnavailable  = errors.New("broker unavailable")
)

// Wire error codes surfaced in error events.
const (
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeInvalidToken     = "INVALID_TOKEN"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeAccessDenied     = "ACCESS_DENIED"
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodePersistence      = "PERSISTENCE_FAILURE"
	ErrCodeBrokerDegraded   = "BROKER_UNAVAILABLE"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ErrorCode maps a domain error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return ErrCodeUnauthenticated
	case errors.Is(err, ErrInvalidToken):
		return ErrCodeInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return ErrCodeTokenExpired
	case errors.Is(err, ErrPrincipalNotFound):
		return ErrCodeUserNotFound
	case errors.Is(err, ErrAccessDenied):
		return ErrCodeAccessDenied
	case errors.Is(err, ErrInvalidMessage):
		return ErrCodeInvalidMessage
	case errors.Is(err, ErrPersistenceFailure):
		return ErrCodePersistence
	case errors.Is(err, ErrBrokerUnavailable):
		return ErrCodeBrokerDegraded
	default:
		return ErrCodeInternalError
	}
}

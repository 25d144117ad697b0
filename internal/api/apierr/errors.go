package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidPlayerID   = "INVALID_PLAYER_ID"
	CodeInvalidRating     = "INVALID_RATING"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
	CodeNotRegistered     = "NOT_REGISTERED"
	CodeAlreadyQueued     = "ALREADY_QUEUED"
	CodeNotQueued         = "NOT_QUEUED"
	CodeQueueFull         = "QUEUE_FULL"
	CodeUnknownProposal   = "UNKNOWN_PROPOSAL"
	CodeNotAParticipant   = "NOT_A_PARTICIPANT"
	CodeInMatch           = "IN_MATCH"
	CodeMatchNotFound     = "MATCH_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInternalError     = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrInvalidPlayerID):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPlayerID, "Player id must be 1-128 characters"}}
	case errors.Is(err, model.ErrAlreadyRegistered):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyRegistered, "Player is already registered"}}
	case errors.Is(err, model.ErrNotRegistered):
		return &httpError{http.StatusNotFound, APIError{CodeNotRegistered, "Player is not registered"}}
	case errors.Is(err, model.ErrAlreadyQueued):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyQueued, "Player is already queued or matched"}}
	case errors.Is(err, model.ErrNotQueued):
		return &httpError{http.StatusConflict, APIError{CodeNotQueued, "Player is not queued"}}
	case errors.Is(err, model.ErrQueueFull):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeQueueFull, "Queue is full"}}
	case errors.Is(err, model.ErrUnknownProposal):
		return &httpError{http.StatusNotFound, APIError{CodeUnknownProposal, "Proposal is unknown or no longer open"}}
	case errors.Is(err, model.ErrNotAParticipant):
		return &httpError{http.StatusForbidden, APIError{CodeNotAParticipant, "Player is not a participant"}}
	case errors.Is(err, model.ErrInMatch):
		return &httpError{http.StatusConflict, APIError{CodeInMatch, "Player is in a match"}}
	case errors.Is(err, model.ErrMatchNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeMatchNotFound, "Match not found"}}
	case errors.Is(err, model.ErrDataError):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRating, "Encrypted rating is malformed"}}
	case errors.Is(err, model.ErrInvalidTransition):
		return &httpError{http.StatusConflict, APIError{CodeInvalidTransition, "Action not allowed in the current state"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInternalErrorWithRef is an internal error carrying a reference the
// caller can quote when reporting it
func NewInternalErrorWithRef(ref string) error {
	if ref == "" {
		return NewInternalError()
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error (ref " + ref + ")"}}
}

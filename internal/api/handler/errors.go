package handler

import (
	"net/http"

	"github.com/mcoot/fairmatch/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// Re-export error codes
const (
	CodeInvalidRequest    = apierr.CodeInvalidRequest
	CodeInvalidPlayerID   = apierr.CodeInvalidPlayerID
	CodeInvalidRating     = apierr.CodeInvalidRating
	CodeUnauthorized      = apierr.CodeUnauthorized
	CodeAlreadyRegistered = apierr.CodeAlreadyRegistered
	CodeNotRegistered     = apierr.CodeNotRegistered
	CodeAlreadyQueued     = apierr.CodeAlreadyQueued
	CodeNotQueued         = apierr.CodeNotQueued
	CodeQueueFull         = apierr.CodeQueueFull
	CodeUnknownProposal   = apierr.CodeUnknownProposal
	CodeNotAParticipant   = apierr.CodeNotAParticipant
	CodeInMatch           = apierr.CodeInMatch
	CodeMatchNotFound     = apierr.CodeMatchNotFound
	CodeInvalidTransition = apierr.CodeInvalidTransition
	CodeInternalError     = apierr.CodeInternalError
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return apierr.NewUnauthorizedError()
}

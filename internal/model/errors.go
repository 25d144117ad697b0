package model

import "errors"

// Common errors used across the application
var (
	// Registry errors
	ErrAlreadyRegistered = errors.New("player is already registered")
	ErrNotRegistered     = errors.New("player is not registered")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrInvalidPlayerID   = errors.New("invalid player id")

	// Queue errors
	ErrAlreadyQueued = errors.New("player is already queued")
	ErrNotQueued     = errors.New("player is not queued")
	ErrQueueFull     = errors.New("queue is full")

	// Proposal errors
	ErrUnknownProposal = errors.New("unknown proposal")
	ErrNotAParticipant = errors.New("player is not a participant")
	ErrSamePlayer      = errors.New("cannot pair a player with themselves")
	ErrInMatch         = errors.New("player is in a match")

	// Match errors
	ErrMatchNotFound = errors.New("match not found")

	// Rating errors
	ErrDataError = errors.New("malformed encrypted rating")
)

package core

import "errors"

// Stable error taxonomy. Callers match with errors.Is; the HTTP layer maps
// each sentinel to a status code. Wrapped messages carry the human detail.
var (
	ErrOutOfRange          = errors.New("amount out of range")
	ErrAnonymousNotAllowed = errors.New("anonymous donations not allowed")
	ErrForbidden           = errors.New("forbidden")
	ErrDuplicateVote       = errors.New("already voted on this proposal")
	ErrAlreadyClosed       = errors.New("proposal already closed")
	ErrVotingClosed        = errors.New("voting period is over")
	ErrNotFound            = errors.New("not found")
	ErrRunInProgress       = errors.New("auto-payment run already in progress")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateHandle     = errors.New("handle already taken")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidChoice    = errors.New("invalid vote choice")
	ErrEmptyTitle       = errors.New("empty title")
	ErrTitleTooLong     = errors.New("title too long (max 200 characters)")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyEmail       = errors.New("email is required")
)

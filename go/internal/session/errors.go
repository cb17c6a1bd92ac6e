package session

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrCodeSpaceExhausted  = errors.New("could not allocate a unique session code")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotInSession        = errors.New("participant is not in this session")
	ErrInvalidDisplayName  = errors.New("display name must be 1-50 characters")
)

package gateway

import (
	"errors"

	"github.com/mcdev12/dinnerpick/go/internal/selection"
	"github.com/mcdev12/dinnerpick/go/internal/session"
)

// ErrRoundComplete rejects submissions once the round's results are out.
var ErrRoundComplete = errors.New("round already complete")

const genericFailure = "Something went wrong, please try again"

// userMessage maps an error to the text shown to the caller. expected is
// false for infrastructure failures, which get a generic message.
func userMessage(err error) (message string, expected bool) {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return validation.Message, true
	case errors.Is(err, ErrUnknownEvent):
		return "Unknown event", true
	case errors.Is(err, session.ErrSessionNotFound):
		return "Session not found or has expired", true
	case errors.Is(err, session.ErrSessionFull):
		return "Session is full", true
	case errors.Is(err, session.ErrNotInSession), errors.Is(err, session.ErrParticipantNotFound):
		return "You are not a participant in this session", true
	case errors.Is(err, session.ErrInvalidDisplayName):
		return "Display name must be between 1 and 50 characters", true
	case errors.Is(err, selection.ErrAlreadySubmitted):
		return "You have already submitted your selections", true
	case errors.Is(err, selection.ErrInvalidOptions):
		return "One or more selected options are invalid", true
	case errors.Is(err, selection.ErrEmptySelection):
		return "Select at least one option", true
	case errors.Is(err, ErrRoundComplete):
		return "Results are already in, restart to pick again", true
	default:
		return genericFailure, false
	}
}

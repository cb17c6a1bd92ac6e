package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/session"
)

const (
	maxSelections    = 50
	maxOptionIDLen   = 128
	sessionCodeError = "Session code must be 6 letters or digits"
)

// ValidationError is a payload problem reported verbatim to the caller
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func validateSessionCode(raw string) (string, error) {
	code := models.NormalizeSessionCode(raw)
	if !models.IsValidSessionCode(code) {
		return "", invalid(sessionCodeError)
	}
	return code, nil
}

func validateJoin(req JoinRequest) (JoinRequest, error) {
	code, err := validateSessionCode(req.SessionCode)
	if err != nil {
		return req, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if n := utf8.RuneCountInString(name); n == 0 || n > session.MaxDisplayNameLength {
		return req, invalid("Display name must be between 1 and %d characters", session.MaxDisplayNameLength)
	}
	return JoinRequest{SessionCode: code, DisplayName: name}, nil
}

func validateSubmit(req SubmitRequest) (SubmitRequest, error) {
	code, err := validateSessionCode(req.SessionCode)
	if err != nil {
		return req, err
	}
	if len(req.Selections) == 0 || len(req.Selections) > maxSelections {
		return req, invalid("Select between 1 and %d options", maxSelections)
	}
	for _, id := range req.Selections {
		if strings.TrimSpace(id) == "" || len(id) > maxOptionIDLen {
			return req, invalid("Option ids must be non-empty strings")
		}
	}
	return SubmitRequest{SessionCode: code, Selections: req.Selections}, nil
}

package models

import (
	"strings"
	"time"
)

// SessionState defines where a session is in its lifecycle.
type SessionState string

const (
	SessionStateWaiting   SessionState = "waiting"
	SessionStateSelecting SessionState = "selecting"
	SessionStateComplete  SessionState = "complete"
	SessionStateExpired   SessionState = "expired"
)

// Valid reports whether s is one of the known session states.
func (s SessionState) Valid() bool {
	switch s {
	case SessionStateWaiting, SessionStateSelecting, SessionStateComplete, SessionStateExpired:
		return true
	default:
		return false
	}
}

const (
	// SessionCodeLength is the number of characters in a session code.
	SessionCodeLength = 6
	// SessionCodeAlphabet is the set of characters a session code is drawn from.
	SessionCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// MaxParticipants is the capacity of a single session.
	MaxParticipants = 4
)

// IsValidSessionCode reports whether code is exactly SessionCodeLength
// characters from SessionCodeAlphabet.
func IsValidSessionCode(code string) bool {
	if len(code) != SessionCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(SessionCodeAlphabet, r) {
			return false
		}
	}
	return true
}

// NormalizeSessionCode trims and upper-cases a user supplied code.
func NormalizeSessionCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Session represents one group's dinner-decision round.
type Session struct {
	Code             string       `json:"code"`
	HostID           string       `json:"hostId"`
	HostName         string       `json:"hostName"`
	State            SessionState `json:"state"`
	ParticipantCount int          `json:"participantCount"`
	CreatedAt        time.Time    `json:"createdAt"`
	LastActivityAt   time.Time    `json:"lastActivityAt"`
	// ExpiresAt is derived from the store TTL, it is not persisted.
	ExpiresAt time.Time `json:"expiresAt"`
}

package session

import (
	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/models"
)

// MaxDisplayNameLength bounds host and participant display names.
const MaxDisplayNameLength = 50

// CreateSessionRequest represents the data needed to create a session
type CreateSessionRequest struct {
	HostName string        `json:"hostName"`
	Query    catalog.Query `json:"query"`
}

// CreateSessionResult is returned to the host after creating a session
type CreateSessionResult struct {
	Session   *models.Session `json:"session"`
	ShareLink string          `json:"shareLink"`
}

// JoinSessionRequest represents a participant joining a session
type JoinSessionRequest struct {
	Code          string
	ParticipantID string
	DisplayName   string
}

// JoinResult describes the session after a successful join
type JoinResult struct {
	Participant  *models.Participant   `json:"participant"`
	Session      *models.Session       `json:"session"`
	Participants []*models.Participant `json:"participants"`
	// Rejoined is set when the participant was already a member.
	Rejoined bool `json:"rejoined"`
}

// LeaveResult describes the session after a participant left it
type LeaveResult struct {
	Participant      *models.Participant `json:"participant"`
	ParticipantCount int                 `json:"participantCount"`
}

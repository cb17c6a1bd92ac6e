package models

import "time"

// Participant is one connected member of a session, identified by the
// connection id it joined with.
type Participant struct {
	ID           string    `json:"id"`
	SessionCode  string    `json:"sessionCode"`
	DisplayName  string    `json:"displayName"`
	JoinedAt     time.Time `json:"joinedAt"`
	HasSubmitted bool      `json:"hasSubmitted"`
	IsHost       bool      `json:"isHost"`
}

// ParticipantView is a participant as shown to other clients, including presence.
type ParticipantView struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	IsHost       bool   `json:"isHost"`
	HasSubmitted bool   `json:"hasSubmitted"`
	IsOnline     bool   `json:"isOnline"`
}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/dinnerpick/go/internal/models"
)

// EventName is the name of a frame on the wire
type EventName string

// Client to server events
const (
	EventSessionJoin     EventName = "session:join"
	EventSelectionSubmit EventName = "selection:submit"
	EventSessionRestart  EventName = "session:restart"
	EventSessionLeave    EventName = "session:leave"
)

// Server to client events
const (
	EventAck                  EventName = "ack"
	EventParticipantJoined    EventName = "participant:joined"
	EventParticipantSubmitted EventName = "participant:submitted"
	EventSessionResults       EventName = "session:results"
	EventSessionRestarted     EventName = "session:restarted"
	EventParticipantLeft      EventName = "participant:left"
	EventSessionExpired       EventName = "session:expired"
)

// ErrUnknownEvent is returned by DecodeClientEvent for unsupported event names.
var ErrUnknownEvent = errors.New("unknown event")

// ClientFrame is a frame received from a client
type ClientFrame struct {
	Event EventName       `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// ServerFrame is a frame sent to clients
type ServerFrame struct {
	Event     EventName `json:"event"`
	AckID     string    `json:"ackId,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientEvent is one of JoinRequest, SubmitRequest, RestartRequest or LeaveRequest
type ClientEvent interface {
	clientEvent()
}

type JoinRequest struct {
	SessionCode string `json:"sessionCode"`
	DisplayName string `json:"displayName"`
}

type SubmitRequest struct {
	SessionCode string   `json:"sessionCode"`
	Selections  []string `json:"selections"`
}

type RestartRequest struct {
	SessionCode string `json:"sessionCode"`
}

type LeaveRequest struct {
	SessionCode string `json:"sessionCode"`
}

func (JoinRequest) clientEvent()    {}
func (SubmitRequest) clientEvent()  {}
func (RestartRequest) clientEvent() {}
func (LeaveRequest) clientEvent()   {}

// DecodeClientEvent parses the payload of a frame into its typed request
func DecodeClientEvent(frame ClientFrame) (ClientEvent, error) {
	var event ClientEvent
	switch frame.Event {
	case EventSessionJoin:
		event = &JoinRequest{}
	case EventSelectionSubmit:
		event = &SubmitRequest{}
	case EventSessionRestart:
		event = &RestartRequest{}
	case EventSessionLeave:
		event = &LeaveRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}

	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		return nil, &ValidationError{Message: "Missing event payload"}
	}
	if err := json.Unmarshal(frame.Data, event); err != nil {
		return nil, &ValidationError{Message: "Malformed event payload"}
	}

	switch e := event.(type) {
	case *JoinRequest:
		return *e, nil
	case *SubmitRequest:
		return *e, nil
	case *RestartRequest:
		return *e, nil
	case *LeaveRequest:
		return *e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
}

// ServerEvent is a typed payload broadcast to a room
type ServerEvent interface {
	EventName() EventName
}

type ParticipantJoined struct {
	Participant      models.ParticipantView `json:"participant"`
	ParticipantCount int                    `json:"participantCount"`
}

type ParticipantSubmitted struct {
	ParticipantID    string `json:"participantId"`
	DisplayName      string `json:"displayName"`
	SubmittedCount   int    `json:"submittedCount"`
	ParticipantCount int    `json:"participantCount"`
}

type SessionResults struct {
	models.Result
}

type SessionRestarted struct {
	RestartedBy string              `json:"restartedBy"`
	State       models.SessionState `json:"state"`
}

type ParticipantLeft struct {
	ParticipantID    string `json:"participantId"`
	DisplayName      string `json:"displayName"`
	IsOnline         bool   `json:"isOnline"`
	Left             bool   `json:"left"`
	ParticipantCount int    `json:"participantCount"`
}

type SessionExpired struct {
	Reason string `json:"reason"`
}

func (ParticipantJoined) EventName() EventName    { return EventParticipantJoined }
func (ParticipantSubmitted) EventName() EventName { return EventParticipantSubmitted }
func (SessionResults) EventName() EventName       { return EventSessionResults }
func (SessionRestarted) EventName() EventName     { return EventSessionRestarted }
func (ParticipantLeft) EventName() EventName      { return EventParticipantLeft }
func (SessionExpired) EventName() EventName       { return EventSessionExpired }

// Ack answers a client request
type Ack struct {
	Success       bool                     `json:"success"`
	Error         string                   `json:"error,omitempty"`
	ParticipantID string                   `json:"participantId,omitempty"`
	Participants  []models.ParticipantView `json:"participants,omitempty"`
	Session       *models.Session          `json:"session,omitempty"`
	Results       *models.Result           `json:"results,omitempty"`
}

func failure(message string) Ack {
	return Ack{Success: false, Error: message}
}

// EncodeEvent renders a server event as a frame
func EncodeEvent(event ServerEvent, at time.Time) ([]byte, error) {
	data, err := json.Marshal(ServerFrame{
		Event:     event.EventName(),
		Data:      event,
		Timestamp: at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event.EventName(), err)
	}
	return data, nil
}

// EncodeAck renders an acknowledgement frame
func EncodeAck(ackID string, ack Ack, at time.Time) ([]byte, error) {
	data, err := json.Marshal(ServerFrame{
		Event:     EventAck,
		AckID:     ackID,
		Data:      ack,
		Timestamp: at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode ack: %w", err)
	}
	return data, nil
}

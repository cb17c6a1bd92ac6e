package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientEvent(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    ClientEvent
		wantErr string
	}{
		{
			name:  "join",
			frame: `{"event":"session:join","data":{"sessionCode":"abc123","displayName":"Ana"}}`,
			want:  JoinRequest{SessionCode: "abc123", DisplayName: "Ana"},
		},
		{
			name:  "submit",
			frame: `{"event":"selection:submit","data":{"sessionCode":"ABC123","selections":["A","B"]}}`,
			want:  SubmitRequest{SessionCode: "ABC123", Selections: []string{"A", "B"}},
		},
		{
			name:  "restart",
			frame: `{"event":"session:restart","data":{"sessionCode":"ABC123"}}`,
			want:  RestartRequest{SessionCode: "ABC123"},
		},
		{
			name:  "leave",
			frame: `{"event":"session:leave","data":{"sessionCode":"ABC123"}}`,
			want:  LeaveRequest{SessionCode: "ABC123"},
		},
		{
			name:    "null payload",
			frame:   `{"event":"session:leave","data":null}`,
			wantErr: "Missing event payload",
		},
		{
			name:    "wrong payload shape",
			frame:   `{"event":"selection:submit","data":{"selections":"A"}}`,
			wantErr: "Malformed event payload",
		},
		{
			name:    "unknown",
			frame:   `{"event":"ack","data":{}}`,
			wantErr: `unknown event: "ack"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var frame ClientFrame
			require.NoError(t, json.Unmarshal([]byte(tt.frame), &frame))

			got, err := DecodeClientEvent(frame)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	data, err := EncodeEvent(SessionExpired{Reason: ExpiryReasonInactivity}, at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"session:expired","data":{"reason":"inactivity"},"timestamp":"2025-06-01T20:00:00Z"}`, string(data))
}

func TestEncodeAck(t *testing.T) {
	at := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	data, err := EncodeAck("7", failure("Session is full"), at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ack","ackId":"7","data":{"success":false,"error":"Session is full"},"timestamp":"2025-06-01T20:00:00Z"}`, string(data))
}

func TestValidateSubmit(t *testing.T) {
	tooMany := make([]string, maxSelections+1)
	for i := range tooMany {
		tooMany[i] = "x"
	}

	_, err := validateSubmit(SubmitRequest{SessionCode: "ABC123", Selections: tooMany})
	assert.EqualError(t, err, "Select between 1 and 50 options")

	_, err = validateSubmit(SubmitRequest{SessionCode: "ABC123", Selections: []string{"A", " "}})
	assert.EqualError(t, err, "Option ids must be non-empty strings")

	req, err := validateSubmit(SubmitRequest{SessionCode: " abc123 ", Selections: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", req.SessionCode)
}

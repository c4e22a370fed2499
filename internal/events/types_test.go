package events

import (
	"testing"
	"time"

	"clinic-console/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookPayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(t *testing.T, p *WebhookPayload)
	}{
		{
			name: "incoming call",
			body: `{"eventType":"INCOMING_CALL","callerNumber":"010-1234-5678","calledNumber":"02-555-0100"}`,
			check: func(t *testing.T, p *WebhookPayload) {
				assert.Equal(t, EventIncomingCall, p.EventType)
				assert.Equal(t, "010-1234-5678", p.CallerNumber)
				assert.Nil(t, p.Timestamp)
			},
		},
		{
			name: "event type is case-insensitive",
			body: `{"eventType":" missed_call ","callerNumber":"+821012345678"}`,
			check: func(t *testing.T, p *WebhookPayload) {
				assert.Equal(t, EventMissedCall, p.EventType)
			},
		},
		{
			name: "explicit timestamp",
			body: `{"eventType":"CALL_ENDED","callerNumber":"01012345678","timestamp":"2024-03-01T09:00:00Z"}`,
			check: func(t *testing.T, p *WebhookPayload) {
				require.NotNil(t, p.Timestamp)
				assert.Equal(t, 2024, p.Timestamp.Year())
			},
		},
		{name: "unknown event type", body: `{"eventType":"CALL_TRANSFERRED","callerNumber":"01012345678"}`, wantErr: true},
		{name: "missing caller", body: `{"eventType":"INCOMING_CALL"}`, wantErr: true},
		{name: "bad caller", body: `{"eventType":"INCOMING_CALL","callerNumber":"call me"}`, wantErr: true},
		{name: "unknown field", body: `{"eventType":"INCOMING_CALL","callerNumber":"01012345678","extra":true}`, wantErr: true},
		{name: "not json", body: `eventType=INCOMING_CALL`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := ParseWebhookPayload([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			tt.check(t, payload)
		})
	}
}

func TestWebhookPayload_ToEvent(t *testing.T) {
	received := time.Date(2024, 3, 1, 9, 0, 5, 0, time.UTC)
	payload := &WebhookPayload{EventType: EventIncomingCall, CallerNumber: "01012345678", CallID: "pbx-77"}

	event := payload.ToEvent("e1", received)
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, "pbx-77", event.CallID)
	assert.Equal(t, received, event.Timestamp)
	assert.Equal(t, received, event.ReceivedAt)

	sent := received.Add(-5 * time.Second)
	payload.Timestamp = &sent
	assert.Equal(t, sent, payload.ToEvent("e2", received).Timestamp)
}

func TestCTIEvent_WithPatient(t *testing.T) {
	event := CTIEvent{ID: "e1"}

	known := event.WithPatient(&PatientInfo{ID: "p1", Name: "Kim"})
	require.NotNil(t, known.IsNewCustomer)
	assert.False(t, *known.IsNewCustomer)
	assert.Equal(t, "p1", known.Patient.ID)

	unknown := event.WithPatient(nil)
	require.NotNil(t, unknown.IsNewCustomer)
	assert.True(t, *unknown.IsNewCustomer)

	assert.Nil(t, event.Patient, "original is unchanged")
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "01012345678", NormalizePhone("010-1234-5678"))
	assert.Equal(t, "821012345678", NormalizePhone("+82 10 1234 5678"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}

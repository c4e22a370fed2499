// Package events holds the CTI event model, the in-memory event store that fans
// events out to live stream clients, and the Redis relay that shares events between instances.
package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/validation"
)

// EventType is the kind of call-center event
type EventType string

const (
	EventIncomingCall EventType = "INCOMING_CALL"
	EventCallAnswered EventType = "CALL_ANSWERED"
	EventCallEnded    EventType = "CALL_ENDED"
	EventMissedCall   EventType = "MISSED_CALL"
)

// Valid reports whether t is one of the known event kinds
func (t EventType) Valid() bool {
	switch t {
	case EventIncomingCall, EventCallAnswered, EventCallEnded, EventMissedCall:
		return true
	}
	return false
}

// PatientInfo is the patient matched to the caller number
type PatientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CTIEvent is immutable once created
type CTIEvent struct {
	ID            string       `json:"id"`
	CallID        string       `json:"callId,omitempty"`
	EventType     EventType    `json:"eventType"`
	CallerNumber  string       `json:"callerNumber"`
	CalledNumber  string       `json:"calledNumber"`
	Timestamp     time.Time    `json:"timestamp"`
	ReceivedAt    time.Time    `json:"receivedAt"`
	Patient       *PatientInfo `json:"patient,omitempty"`
	IsNewCustomer *bool        `json:"isNewCustomer,omitempty"`
}

// WithPatient returns a copy of e annotated with the lookup result
func (e CTIEvent) WithPatient(patient *PatientInfo) CTIEvent {
	isNew := patient == nil
	e.Patient = patient
	e.IsNewCustomer = &isNew
	return e
}

// WebhookPayload is the body accepted from the telephony system
type WebhookPayload struct {
	EventType    EventType  `json:"eventType" validate:"required,oneof=INCOMING_CALL CALL_ANSWERED CALL_ENDED MISSED_CALL"`
	CallerNumber string     `json:"callerNumber" validate:"required,phone"`
	CalledNumber string     `json:"calledNumber" validate:"omitempty,phone"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	CallID       string     `json:"callId,omitempty" validate:"omitempty,max=128"`
}

// ParseWebhookPayload decodes and validates a webhook body. Unknown fields and
// unknown event kinds are rejected so loosely shaped input never reaches the store.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return nil, errors.ValidationError("malformed CTI payload").WithContext("cause", err.Error())
	}

	payload.EventType = EventType(strings.ToUpper(strings.TrimSpace(string(payload.EventType))))
	payload.CallerNumber = strings.TrimSpace(payload.CallerNumber)
	payload.CalledNumber = strings.TrimSpace(payload.CalledNumber)

	if err := validation.ValidateStruct(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ToEvent builds the stored event. A missing timestamp defaults to receivedAt.
func (p *WebhookPayload) ToEvent(id string, receivedAt time.Time) CTIEvent {
	timestamp := receivedAt
	if p.Timestamp != nil && !p.Timestamp.IsZero() {
		timestamp = *p.Timestamp
	}
	return CTIEvent{
		ID:           id,
		CallID:       p.CallID,
		EventType:    p.EventType,
		CallerNumber: p.CallerNumber,
		CalledNumber: p.CalledNumber,
		Timestamp:    timestamp,
		ReceivedAt:   receivedAt,
	}
}

// NormalizePhone keeps only the digits of a phone number, used as the patient lookup key
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

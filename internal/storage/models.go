package storage

import "time"

// Roles carried in access tokens
const (
	RoleMaster  = "master"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	switch role {
	case RoleMaster, RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	ClinicID     string    `json:"clinicId"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type RefreshToken struct {
	TokenHash string    `json:"tokenHash"`
	UserID    string    `json:"userId"`
	ClinicID  string    `json:"clinicId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the token is unusable at now
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

type LoginAttempt struct {
	Identifier  string    `json:"identifier"`
	Success     bool      `json:"success"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

type Patient struct {
	ID        string    `json:"id"`
	ClinicID  string    `json:"clinicId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

type CallLog struct {
	ID           string    `json:"id"`
	EventType    string    `json:"eventType"`
	CallerNumber string    `json:"callerNumber"`
	CalledNumber string    `json:"calledNumber"`
	PatientID    string    `json:"patientId,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

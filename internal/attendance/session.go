package attendance

import "time"

// SessionStatus enumerates the lifecycle states of an attendance session.
type SessionStatus string

const (
	StatusCreated SessionStatus = "created"
	StatusActive  SessionStatus = "active"
	StatusExpired SessionStatus = "expired"
)

// Session is one attendance-taking instance for a class, bound to one
// numeric code and one activation timestamp.
type Session struct {
	ID              string        `json:"id"`
	ClassID         string        `json:"class_id"`
	ProfessorID     string        `json:"professor_id"`
	AttendanceCode  string        `json:"attendance_code"`
	Status          SessionStatus `json:"status"`
	IsActive        bool          `json:"is_active"`
	CodeActivatedAt *time.Time    `json:"code_activated_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Verification states for a submitted record.
const (
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
	VerificationFailed     = "failed"
	VerificationUnverified = "unverified" // neighbor-reported rows
)

// Record is one attendance row. StudentID is nil for neighbor-reported
// rows, which are unauthenticated claims subject to later audit.
type Record struct {
	ID                 string    `json:"id"`
	SessionID          string    `json:"session_id"`
	ClassID            string    `json:"class_id"`
	StudentID          *string   `json:"student_id,omitempty"`
	RollNumber         string    `json:"roll_number"`
	Status             string    `json:"status"`
	VerificationStatus string    `json:"verification_status"`
	MarkedAt           time.Time `json:"marked_at"`
}

// RecordView is a record row prepared for the professor-facing listing,
// with the student name resolved from the class roster.
type RecordView struct {
	RollNumber         string    `json:"roll_number"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	VerificationStatus string    `json:"verification_status"`
	MarkedAt           time.Time `json:"marked_at"`
}

package attendance

import (
	"context"
	"time"
)

// Store persists sessions and records. The Postgres implementation lives
// in repo.go; an in-memory implementation backs the tests.
type Store interface {
	// ClassProfessor resolves a class id to its owning professor id,
	// or ErrClassNotFound.
	ClassProfessor(ctx context.Context, classID string) (string, error)

	// InsertSession writes a new session row.
	InsertSession(ctx context.Context, s Session) error

	// GetSession returns a session by id, or ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (Session, error)

	// ActivateSession atomically expires every other active session of the
	// same class and marks the target active with code_activated_at=now.
	// Concurrent activations for one class must serialize; after a
	// successful return exactly one session of the class is active.
	ActivateSession(ctx context.Context, sessionID string, now time.Time) error

	// FindValidSession expires stale active sessions (activated before
	// now-codeWindow), then returns the unique active session matching
	// class and code inside the window. Zero or multiple matches yield
	// ErrWindowClosed. Sweep and read are consistent with each other.
	FindValidSession(ctx context.Context, classID, code string, now time.Time, codeWindow time.Duration) (Session, error)

	// InsertRecords writes all rows of one admission atomically. A
	// (session_id, student_id) collision yields ErrAlreadySubmitted and
	// no rows are written.
	InsertRecords(ctx context.Context, recs []Record) error

	// ListRecords returns the class's records ordered by marked_at with
	// names resolved from the roster.
	ListRecords(ctx context.Context, classID string) ([]RecordView, error)

	// SetVerification updates the verification status of the submitting
	// student's record for a session.
	SetVerification(ctx context.Context, sessionID, studentID, status string) error
}

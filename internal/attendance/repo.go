package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists sessions and records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// ClassProfessor resolves the owning professor of a class.
func (r *Repository) ClassProfessor(ctx context.Context, classID string) (string, error) {
	var professorID string
	err := r.db.QueryRowContext(ctx, `
		SELECT professor_id FROM classes WHERE id = $1
	`, classID).Scan(&professorID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrClassNotFound
	}
	if err != nil {
		return "", err
	}
	return professorID, nil
}

// InsertSession writes a new session row.
func (r *Repository) InsertSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, class_id, professor_id, attendance_code, status, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, s.ID, s.ClassID, s.ProfessorID, s.AttendanceCode, s.Status, s.IsActive, s.CreatedAt)
	return err
}

// GetSession returns a session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, professor_id, attendance_code, status, is_active, code_activated_at, created_at
		FROM attendance_sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.ClassID, &s.ProfessorID, &s.AttendanceCode, &s.Status, &s.IsActive, &s.CodeActivatedAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// ActivateSession runs the deactivate-then-activate transition in one
// transaction. The class row is locked first so concurrent activations
// for the same class serialize instead of both observing zero active
// sessions.
func (r *Repository) ActivateSession(ctx context.Context, sessionID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var classID string
	err = tx.QueryRowContext(ctx, `
		SELECT class_id FROM attendance_sessions WHERE id = $1
	`, sessionID).Scan(&classID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		SELECT id FROM classes WHERE id = $1 FOR UPDATE
	`, classID); err != nil {
		return err
	}

	// Superseded sessions go to the terminal expired state. The target is
	// excluded so re-activation cannot deactivate itself.
	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET status = 'expired', is_active = FALSE
		WHERE class_id = $1 AND is_active AND id <> $2
	`, classID, sessionID); err != nil {
		return fmt.Errorf("deactivate prior sessions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET status = 'active', is_active = TRUE, code_activated_at = $2
		WHERE id = $1
	`, sessionID, now)
	if err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}

	return tx.Commit()
}

// FindValidSession sweeps stale active sessions, then looks up the unique
// active session for class+code inside the code window. Sweep and read
// share one transaction so a session cannot be read as active past its
// window.
func (r *Repository) FindValidSession(ctx context.Context, classID, code string, now time.Time, codeWindow time.Duration) (Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	cutoff := now.Add(-codeWindow)
	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET status = 'expired', is_active = FALSE
		WHERE is_active AND code_activated_at < $1
	`, cutoff); err != nil {
		return Session{}, fmt.Errorf("expiry sweep: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, class_id, professor_id, attendance_code, status, is_active, code_activated_at, created_at
		FROM attendance_sessions
		WHERE class_id = $1 AND attendance_code = $2 AND status = 'active' AND code_activated_at >= $3
	`, classID, code, cutoff)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()

	var matches []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.ClassID, &s.ProfessorID, &s.AttendanceCode, &s.Status, &s.IsActive, &s.CodeActivatedAt, &s.CreatedAt); err != nil {
			return Session{}, err
		}
		matches = append(matches, s)
	}
	if err := rows.Err(); err != nil {
		return Session{}, err
	}
	// More than one match means the single-active invariant was violated
	// somewhere; treat it as a data fault and reject like a miss.
	if len(matches) != 1 {
		if err := tx.Commit(); err != nil {
			return Session{}, err
		}
		return Session{}, ErrWindowClosed
	}
	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return matches[0], nil
}

// InsertRecords writes one admission atomically. The partial unique index
// on (session_id, student_id) closes the duplicate-submission race at the
// storage layer.
func (r *Repository) InsertRecords(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_records (id, session_id, class_id, student_id, roll_number, status, verification_status, marked_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, rec.ID, rec.SessionID, rec.ClassID, rec.StudentID, rec.RollNumber, rec.Status, rec.VerificationStatus, rec.MarkedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("insert record: %w", err)
		}
	}
	return tx.Commit()
}

// ListRecords resolves names by joining the roster on roll number so
// neighbor-reported rows (no student id) resolve too.
func (r *Repository) ListRecords(ctx context.Context, classID string) ([]RecordView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rec.roll_number, COALESCE(cs.full_name, ''), rec.status, rec.verification_status, rec.marked_at
		FROM attendance_records rec
		LEFT JOIN class_students cs
			ON cs.class_id = rec.class_id AND cs.roll_number = rec.roll_number
		WHERE rec.class_id = $1
		ORDER BY rec.marked_at ASC
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []RecordView
	for rows.Next() {
		var v RecordView
		if err := rows.Scan(&v.RollNumber, &v.Name, &v.Status, &v.VerificationStatus, &v.MarkedAt); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// SetVerification updates the submitting student's record.
func (r *Repository) SetVerification(ctx context.Context, sessionID, studentID, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET verification_status = $3
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID, status)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

package attendance

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestActivateSessionOrdering(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_id FROM attendance_sessions WHERE id = $1")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id"}).AddRow("class-1"))
	mock.ExpectExec(regexp.QuoteMeta("SELECT id FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'expired', is_active = FALSE WHERE class_id = $1 AND is_active AND id <> $2")).
		WithArgs("class-1", "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'active', is_active = TRUE, code_activated_at = $2 WHERE id = $1")).
		WithArgs("sess-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ActivateSession(context.Background(), "sess-1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateSessionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_id FROM attendance_sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.ActivateSession(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActivateSessionAbortsWhenSweepFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_id FROM attendance_sessions WHERE id = $1")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id"}).AddRow("class-1"))
	mock.ExpectExec(regexp.QuoteMeta("SELECT id FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'expired', is_active = FALSE")).
		WithArgs("class-1", "sess-1").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ActivateSession(context.Background(), "sess-1", time.Now())
	assert.Error(t, err)
	// activation never ran after the failed sweep
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindValidSessionSweepsBeforeRead(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	activated := now.Add(-30 * time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'expired', is_active = FALSE WHERE is_active AND code_activated_at < $1")).
		WithArgs(now.Add(-60 * time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id = $1 AND attendance_code = $2 AND status = 'active' AND code_activated_at >= $3")).
		WithArgs("class-1", "54321", now.Add(-60*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "professor_id", "attendance_code", "status", "is_active", "code_activated_at", "created_at"}).
			AddRow("sess-1", "class-1", "prof-1", "54321", "active", true, activated, now.Add(-time.Minute)))
	mock.ExpectCommit()

	sess, err := repo.FindValidSession(context.Background(), "class-1", "54321", now, 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	require.NotNil(t, sess.CodeActivatedAt)
	assert.True(t, sess.CodeActivatedAt.Equal(activated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindValidSessionNoMatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'expired', is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id = $1 AND attendance_code = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "professor_id", "attendance_code", "status", "is_active", "code_activated_at", "created_at"}))
	mock.ExpectCommit()

	_, err := repo.FindValidSession(context.Background(), "class-1", "00000", now, 60*time.Second)
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestInsertRecordsDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	student := "student-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	err := repo.InsertRecords(context.Background(), []Record{{
		ID:         "rec-1",
		SessionID:  "sess-1",
		ClassID:    "class-1",
		StudentID:  &student,
		RollNumber: "101",
		Status:     "present",
		MarkedAt:   time.Now().UTC(),
	}})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestGetSessionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListRecords(t *testing.T) {
	repo, mock := newMockRepo(t)
	markedAt := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records rec")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"roll_number", "full_name", "status", "verification_status", "marked_at"}).
			AddRow("101", "Asha Rao", "present", "verified", markedAt).
			AddRow("102", "", "present", "unverified", markedAt))

	views, err := repo.ListRecords(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Asha Rao", views[0].Name)
	assert.Equal(t, "", views[1].Name)
}

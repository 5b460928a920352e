package classroom

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

func TestCreateClass(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := repo.CreateClass(context.Background(), "CS101", "Algorithms", "prof-1")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "CS101", c.Code)
	assert.Equal(t, "prof-1", c.ProfessorID)
}

func TestCreateClassCodeTaken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.CreateClass(context.Background(), "CS101", "", "prof-1")
	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestGetClassByCode(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE code = $1")).
		WithArgs("CS101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "professor_id", "created_at"}).
			AddRow("class-1", "CS101", "Algorithms", "prof-1", created))

	c, err := repo.GetClassByCode(context.Background(), "CS101")
	require.NoError(t, err)
	assert.Equal(t, "class-1", c.ID)
}

func TestGetClassByCodeNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE code = $1")).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetClassByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinAlreadyJoined(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_students")).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.Join(context.Background(), "class-1", "stu-1", "101", "Asha Rao")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

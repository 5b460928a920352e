package classroom

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists classes and roster rows in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateClass inserts a class owned by the given professor.
func (r *Repository) CreateClass(ctx context.Context, code, name, professorID string) (Class, error) {
	c := Class{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        name,
		ProfessorID: professorID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO classes (id, code, name, professor_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, c.ID, c.Code, c.Name, c.ProfessorID, c.CreatedAt)
	if isUniqueViolation(err) {
		return Class{}, ErrCodeTaken
	}
	if err != nil {
		return Class{}, err
	}
	return c, nil
}

// GetClassByCode resolves a class by its human code.
func (r *Repository) GetClassByCode(ctx context.Context, code string) (Class, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, professor_id, created_at FROM classes WHERE code = $1
	`, code)
	var c Class
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.ProfessorID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Class{}, ErrNotFound
		}
		return Class{}, err
	}
	return c, nil
}

// Join adds a student to a class roster. The (class_id, student_id) and
// (class_id, roll_number) uniqueness lives in the schema.
func (r *Repository) Join(ctx context.Context, classID, studentID, rollNumber, fullName string) (Member, error) {
	m := Member{
		ID:         uuid.NewString(),
		ClassID:    classID,
		StudentID:  studentID,
		RollNumber: rollNumber,
		FullName:   fullName,
		JoinedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO class_students (id, class_id, student_id, roll_number, full_name, joined_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.ClassID, m.StudentID, m.RollNumber, m.FullName, m.JoinedAt)
	if isUniqueViolation(err) {
		return Member{}, ErrAlreadyJoined
	}
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

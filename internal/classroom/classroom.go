package classroom

import (
	"errors"
	"time"
)

// Class is owned by a professor and joined by students via its human code.
type Class struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	ProfessorID string    `json:"professor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is one roster row: a student enrolled in a class under a roll number.
type Member struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	RollNumber string    `json:"roll_number"`
	FullName   string    `json:"full_name"`
	JoinedAt   time.Time `json:"joined_at"`
}

var (
	ErrNotFound      = errors.New("class not found")
	ErrAlreadyJoined = errors.New("already joined this class")
	ErrCodeTaken     = errors.New("class code already in use")
)

// Package school is a small CRUD domain used by the demo binary: teachers,
// the classes they run, sqlx repositories and transactional services wired
// through the container.
package school

import (
	"github.com/xraph/anvil/internal/errors"
)

// Teacher is a member of staff.
type Teacher struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name" validate:"required,notblank,max=100"`
	Department string `db:"department" json:"department,omitempty" validate:"max=100"`
	Phone      string `db:"phone" json:"phone,omitempty" validate:"max=32"`
	Email      string `db:"email" json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// Clazz is a class. TeacherID is empty for a class without a teacher.
type Clazz struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name" validate:"required,notblank,max=100"`
	TeacherID    string `db:"teacher_id" json:"teacherId,omitempty"`
	StudentCount int    `db:"student_count" json:"studentCount" validate:"min=0"`
	Description  string `db:"description" json:"description,omitempty" validate:"max=500"`
}

var (
	ErrTeacherNotFound  = errors.New("teacher not found")
	ErrClazzNotFound    = errors.New("class not found")
	ErrClazzHasStudents = errors.New("class still has students")
	ErrInvalidInput     = errors.New("invalid input")
)

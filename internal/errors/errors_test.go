package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnvilErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error code matches",
			err:    ErrComponentNotFound("teacherService"),
			target: ErrComponentNotFoundSentinel,
			want:   true,
		},
		{
			name:   "different error code does not match",
			err:    ErrComponentNotFound("teacherService"),
			target: ErrCircularDependencySentinel,
			want:   false,
		},
		{
			name:   "cause chain matches",
			err:    ErrMissingDependency("clazzService", "teacherService", ErrComponentNotFound("teacherService")),
			target: ErrComponentNotFoundSentinel,
			want:   true,
		},
		{
			name:   "wrapped with fmt matches",
			err:    fmt.Errorf("start: %w", ErrCircularDependency([]string{"a", "b", "a"})),
			target: ErrCircularDependencySentinel,
			want:   true,
		},
		{
			name:   "nil target does not match",
			err:    ErrTransactionState("boom"),
			target: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.target))
		})
	}
}

func TestComponentErrorIs(t *testing.T) {
	err := NewComponentError("teacherService", "start", errors.New("boom"))

	assert.True(t, errors.Is(err, &ComponentError{Component: "teacherService"}))
	assert.True(t, errors.Is(err, &ComponentError{Operation: "start"}))
	assert.False(t, errors.Is(err, &ComponentError{Component: "clazzService"}))
	assert.Equal(t, "component teacherService: start: boom", err.Error())
}

func TestCircularDependencyMessage(t *testing.T) {
	err := ErrCircularDependency([]string{"a", "b", "a"})

	assert.Equal(t, "circular dependency detected: a -> b -> a", err.Error())
	assert.Equal(t, []string{"a", "b", "a"}, err.Context["path"])
	assert.True(t, IsCircularDependency(err))
}

func TestMissingDependencyUnwrap(t *testing.T) {
	cause := errors.New("no such table")
	err := ErrMissingDependency("clazzService", "teacherService", cause)

	assert.True(t, IsMissingDependency(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "no such table")
}

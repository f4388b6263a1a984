package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// Error code constants for structured errors
const (
	CodeComponentNotFound      = "COMPONENT_NOT_FOUND"
	CodeComponentAlreadyExists = "COMPONENT_ALREADY_EXISTS"
	CodeCircularDependency     = "CIRCULAR_DEPENDENCY"
	CodeMissingDependency      = "MISSING_DEPENDENCY"
	CodeInvalidComponent       = "INVALID_COMPONENT"
	CodeRegistryFrozen         = "REGISTRY_FROZEN"
	CodeContainerNotSet        = "CONTAINER_NOT_SET"
	CodeLifecycleError         = "LIFECYCLE_ERROR"
	CodeTransactionState       = "TRANSACTION_STATE"
	CodeConfigError            = "CONFIG_ERROR"
	CodeValidationError        = "VALIDATION_ERROR"
)

// =============================================================================
// CONTAINER ERRORS
// =============================================================================

// Standard container errors
var (
	ErrTypeMismatch     = errors.New("component type mismatch")
	ErrContainerStarted = errors.New("container already started")
	ErrContainerClosed  = errors.New("container closed")
)

// ComponentError wraps component-specific errors
type ComponentError struct {
	Component string
	Operation string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s: %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface for ComponentError
func (e *ComponentError) Is(target error) bool {
	t, ok := target.(*ComponentError)
	if !ok {
		return false
	}
	return (e.Component == "" || t.Component == "" || e.Component == t.Component) &&
		(e.Operation == "" || t.Operation == "" || e.Operation == t.Operation)
}

// NewComponentError creates a new component error
func NewComponentError(component, operation string, err error) *ComponentError {
	return &ComponentError{
		Component: component,
		Operation: operation,
		Err:       err,
	}
}

// =============================================================================
// ANVIL ERROR (STRUCTURED ERROR)
// =============================================================================

// AnvilError represents a structured error with context
type AnvilError struct {
	Code      string
	Message   string
	Cause     error
	Timestamp time.Time
	Context   map[string]interface{}
}

func (e *AnvilError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AnvilError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is interface for AnvilError.
// Compares by error code, allowing matching against sentinel errors
func (e *AnvilError) Is(target error) bool {
	t, ok := target.(*AnvilError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AnvilError) WithContext(key string, value interface{}) *AnvilError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newError(code, message string, cause error, ctx map[string]interface{}) *AnvilError {
	return &AnvilError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   ctx,
	}
}

// ErrComponentNotFound reports a name with no registered descriptor
func ErrComponentNotFound(name string) *AnvilError {
	return newError(CodeComponentNotFound, "component '"+name+"' not found", nil,
		map[string]interface{}{"component": name})
}

// ErrNoComponentOfType reports a type lookup that matched nothing
func ErrNoComponentOfType(typeName string) *AnvilError {
	return newError(CodeComponentNotFound, "no component assignable to "+typeName, nil,
		map[string]interface{}{"type": typeName})
}

func ErrComponentAlreadyExists(name string) *AnvilError {
	return newError(CodeComponentAlreadyExists, "component '"+name+"' already exists", nil,
		map[string]interface{}{"component": name})
}

// ErrCircularDependency names the construction path that closed a cycle,
// e.g. a -> b -> a.
func ErrCircularDependency(path []string) *AnvilError {
	return newError(CodeCircularDependency, "circular dependency detected: "+strings.Join(path, " -> "), nil,
		map[string]interface{}{"path": path})
}

func ErrMissingDependency(component, dependency string, cause error) *AnvilError {
	return newError(CodeMissingDependency,
		"component '"+component+"' requires '"+dependency+"' which could not be resolved", cause,
		map[string]interface{}{"component": component, "dependency": dependency})
}

func ErrInvalidComponent(name, reason string) *AnvilError {
	return newError(CodeInvalidComponent, "invalid component '"+name+"': "+reason, nil,
		map[string]interface{}{"component": name})
}

func ErrRegistryFrozen(name string) *AnvilError {
	return newError(CodeRegistryFrozen, "registry is frozen, cannot register '"+name+"'", nil,
		map[string]interface{}{"component": name})
}

func ErrContainerNotSet() *AnvilError {
	return newError(CodeContainerNotSet, "no active container has been set", nil, nil)
}

// ErrLifecycleError creates a lifecycle error
func ErrLifecycleError(phase string, cause error) *AnvilError {
	return newError(CodeLifecycleError, "lifecycle error during "+phase, cause,
		map[string]interface{}{"phase": phase})
}

// ErrTransactionState reports a violated propagation precondition or an
// owner that had to roll back instead of committing.
func ErrTransactionState(message string) *AnvilError {
	return newError(CodeTransactionState, message, nil, nil)
}

// ErrConfigError creates a config error
func ErrConfigError(message string, cause error) *AnvilError {
	return newError(CodeConfigError, message, cause, nil)
}

// ErrValidationError reports input rejected by struct tag validation. fields
// maps each failing field to the rule it broke.
func ErrValidationError(message string, fields map[string]string, cause error) *AnvilError {
	return newError(CodeValidationError, message, cause,
		map[string]interface{}{"fields": fields})
}

// =============================================================================
// STANDARD ERRORS PACKAGE INTEGRATION
// =============================================================================

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As from the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap is a convenience wrapper around errors.Unwrap from the standard library.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// =============================================================================
// SENTINEL ERRORS (for use with Is)
// =============================================================================

// Sentinel errors that can be used with errors.Is comparisons
var (
	ErrComponentNotFoundSentinel      = &AnvilError{Code: CodeComponentNotFound}
	ErrComponentAlreadyExistsSentinel = &AnvilError{Code: CodeComponentAlreadyExists}
	ErrCircularDependencySentinel     = &AnvilError{Code: CodeCircularDependency}
	ErrMissingDependencySentinel      = &AnvilError{Code: CodeMissingDependency}
	ErrInvalidComponentSentinel       = &AnvilError{Code: CodeInvalidComponent}
	ErrRegistryFrozenSentinel         = &AnvilError{Code: CodeRegistryFrozen}
	ErrContainerNotSetSentinel        = &AnvilError{Code: CodeContainerNotSet}
	ErrLifecycleErrorSentinel         = &AnvilError{Code: CodeLifecycleError}
	ErrTransactionStateSentinel       = &AnvilError{Code: CodeTransactionState}
	ErrConfigErrorSentinel            = &AnvilError{Code: CodeConfigError}
	ErrValidationErrorSentinel        = &AnvilError{Code: CodeValidationError}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsComponentNotFound checks if the error is a component not found error
func IsComponentNotFound(err error) bool {
	return Is(err, ErrComponentNotFoundSentinel)
}

// IsCircularDependency checks if the error is a circular dependency error
func IsCircularDependency(err error) bool {
	return Is(err, ErrCircularDependencySentinel)
}

// IsMissingDependency checks if the error is a missing dependency error
func IsMissingDependency(err error) bool {
	return Is(err, ErrMissingDependencySentinel)
}

// IsTransactionState checks if the error is a transaction state error
func IsTransactionState(err error) bool {
	return Is(err, ErrTransactionStateSentinel)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return Is(err, ErrValidationErrorSentinel)
}

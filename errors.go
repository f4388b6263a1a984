package anvil

import (
	"github.com/xraph/anvil/internal/errors"
)

// AnvilError is a coded error carrying a cause and context.
type AnvilError = errors.AnvilError

// ComponentError wraps a failure of one component operation.
type ComponentError = errors.ComponentError

// Re-export error constructors.
var (
	ErrComponentNotFound      = errors.ErrComponentNotFound
	ErrComponentAlreadyExists = errors.ErrComponentAlreadyExists
	ErrCircularDependency     = errors.ErrCircularDependency
	ErrMissingDependency      = errors.ErrMissingDependency
	ErrTransactionState       = errors.ErrTransactionState
	ErrNoComponentOfType      = errors.ErrNoComponentOfType
	ErrInvalidComponent       = errors.ErrInvalidComponent
	ErrRegistryFrozen         = errors.ErrRegistryFrozen
	ErrContainerNotSet        = errors.ErrContainerNotSet
	ErrLifecycleError         = errors.ErrLifecycleError
	ErrConfigError            = errors.ErrConfigError
	ErrValidationError        = errors.ErrValidationError
	NewComponentError         = errors.NewComponentError
)

// Plain sentinels.
var (
	ErrTypeMismatch     = errors.ErrTypeMismatch
	ErrContainerStarted = errors.ErrContainerStarted
	ErrContainerClosed  = errors.ErrContainerClosed
)

// Re-export sentinel errors for comparison using errors.Is().
var (
	ErrComponentNotFoundSentinel      = errors.ErrComponentNotFoundSentinel
	ErrComponentAlreadyExistsSentinel = errors.ErrComponentAlreadyExistsSentinel
	ErrCircularDependencySentinel     = errors.ErrCircularDependencySentinel
	ErrMissingDependencySentinel      = errors.ErrMissingDependencySentinel
	ErrInvalidComponentSentinel       = errors.ErrInvalidComponentSentinel
	ErrRegistryFrozenSentinel         = errors.ErrRegistryFrozenSentinel
	ErrContainerNotSetSentinel        = errors.ErrContainerNotSetSentinel
	ErrLifecycleErrorSentinel         = errors.ErrLifecycleErrorSentinel
	ErrTransactionStateSentinel       = errors.ErrTransactionStateSentinel
	ErrConfigErrorSentinel            = errors.ErrConfigErrorSentinel
	ErrValidationErrorSentinel        = errors.ErrValidationErrorSentinel
)

// Error classification helpers.
var (
	IsComponentNotFound  = errors.IsComponentNotFound
	IsCircularDependency = errors.IsCircularDependency
	IsMissingDependency  = errors.IsMissingDependency
	IsTransactionState   = errors.IsTransactionState
	IsValidationError    = errors.IsValidationError
)

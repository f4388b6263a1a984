package anvil

import (
	"github.com/xraph/anvil/internal/logger"
)

// Logger represents the logging interface.
type Logger = logger.Logger

// LoggingConfig represents logging configuration.
type LoggingConfig = logger.LoggingConfig

// Field represents a structured log field.
type Field = logger.Field

// Re-export logger constructors.
var (
	NewLogger            = logger.NewLogger
	NewDevelopmentLogger = logger.NewDevelopmentLogger
	NewNoopLogger        = logger.NewNoopLogger
	FromZap              = logger.FromZap
	WithLoggerContext    = logger.WithLogger
	LoggerFromContext    = logger.LoggerFromContext
)

// Re-export field constructors.
var (
	String   = logger.String
	Strings  = logger.Strings
	Int      = logger.Int
	Int64    = logger.Int64
	Bool     = logger.Bool
	Duration = logger.Duration
	Error    = logger.Error
	Any      = logger.Any
)

package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field represents a structured log field
type Field interface {
	Key() string
	Value() interface{}
	// ZapField returns the underlying zap.Field for efficient conversion
	ZapField() zap.Field
}

// ZapField wraps a zap.Field and implements the Field interface.
type ZapField struct {
	key   string
	value interface{}
	field zap.Field
}

func (f ZapField) Key() string         { return f.key }
func (f ZapField) Value() interface{}  { return f.value }
func (f ZapField) ZapField() zap.Field { return f.field }

func wrap(key string, value interface{}, field zap.Field) Field {
	return ZapField{key: key, value: value, field: field}
}

// String creates a string field.
func String(key, value string) Field {
	return wrap(key, value, zap.String(key, value))
}

// Strings creates a string slice field.
func Strings(key string, value []string) Field {
	return wrap(key, value, zap.Strings(key, value))
}

// Int creates an int field.
func Int(key string, value int) Field {
	return wrap(key, value, zap.Int(key, value))
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return wrap(key, value, zap.Int64(key, value))
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return wrap(key, value, zap.Bool(key, value))
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return wrap(key, value, zap.Duration(key, value))
}

// Error creates an error field under the "error" key.
func Error(err error) Field {
	return wrap("error", err, zap.Error(err))
}

// Stringer creates a field from a fmt.Stringer.
func Stringer(key string, value interface{ String() string }) Field {
	return wrap(key, value, zap.Stringer(key, value))
}

// Any creates a field from an arbitrary value.
func Any(key string, value interface{}) Field {
	return wrap(key, value, zap.Any(key, value))
}

// Stack records the current stack trace.
func Stack(key string) Field {
	return wrap(key, nil, zap.Stack(key))
}

// Domain specific helpers.

// Component names a managed component.
func Component(name string) Field {
	return String("component", name)
}

// TxID identifies a transaction context.
func TxID(id string) Field {
	return String("tx_id", id)
}

// Depth is the size of a transaction stack.
func Depth(n int) Field {
	return Int("depth", n)
}

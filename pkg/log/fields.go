package log

import (
	"fmt"
	"time"
)

const errorKey = "error"

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field with an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Str creates a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 Field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Dur creates a duration Field rendered in Go duration syntax.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }

// Time creates a timestamp Field rendered as RFC 3339.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.UTC().Format(time.RFC3339Nano)}
}

// Err creates the conventional "error" Field. A nil error yields an empty value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err}
}

// Component tags a log line with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Stringer creates a Field from a fmt.Stringer, evaluated eagerly.
func Stringer(key string, value fmt.Stringer) Field {
	if value == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: value.String()}
}

// Package mqerr defines the small set of error categories the framework
// distinguishes between when deciding how to log, ack, or exit. Modeled on
// the original implementation's MQSFException subclass hierarchy
// (exceptions.py), using Go's wrap-and-compare idiom instead of a class
// hierarchy.
package mqerr

import (
	"errors"
	"fmt"
)

// Category identifies which of the framework's error kinds an error
// belongs to, so callers can branch with errors.Is/As instead of string
// matching.
type Category int

const (
	// CategoryConfig covers malformed or missing configuration, including
	// a missing required previous_service key.
	CategoryConfig Category = iota

	// CategoryConnect covers AMQP dial/channel/declare/bind failures.
	CategoryConnect

	// CategoryEnvelope covers a listener message that isn't valid JSON,
	// or is missing its expected key.
	CategoryEnvelope

	// CategoryPlugin covers plugin resolution and execution failures.
	CategoryPlugin

	// CategoryLogSetup covers failures creating or opening the log file.
	CategoryLogSetup
)

func (c Category) String() string {
	switch c {
	case CategoryConfig:
		return "config"
	case CategoryConnect:
		return "connect"
	case CategoryEnvelope:
		return "envelope"
	case CategoryPlugin:
		return "plugin"
	case CategoryLogSetup:
		return "log_setup"
	default:
		return "unknown"
	}
}

// Error is a categorized, wrapped error. Message describes what this
// framework was doing when the wrapped error occurred; Err is nil for
// errors with no underlying cause.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(cat Category, err error, format string, args ...interface{}) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...), Err: err}
}

// Config wraps a configuration error.
func Config(err error, format string, args ...interface{}) *Error {
	return newf(CategoryConfig, err, format, args...)
}

// Connect wraps a broker connection/declare/bind error.
func Connect(err error, format string, args ...interface{}) *Error {
	return newf(CategoryConnect, err, format, args...)
}

// Envelope wraps a malformed listener message error.
func Envelope(err error, format string, args ...interface{}) *Error {
	return newf(CategoryEnvelope, err, format, args...)
}

// Plugin wraps a plugin resolution or execution error.
func Plugin(err error, format string, args ...interface{}) *Error {
	return newf(CategoryPlugin, err, format, args...)
}

// LogSetup wraps a log file setup error.
func LogSetup(err error, format string, args ...interface{}) *Error {
	return newf(CategoryLogSetup, err, format, args...)
}

// Is reports whether err is an *Error of the given category, unwrapping
// as errors.As does.
func Is(err error, cat Category) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == cat
	}
	return false
}

// Package domain defines core types and errors shared across the query pipeline.
package domain

import "fmt"

// ExtractionError indicates the language model failed to produce a usable
// entity record. It is always recovered locally by the pattern extractor.
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string { return e.Message }

// GenerationError indicates SQL generation exhausted its attempts without
// producing a valid query.
type GenerationError struct {
	Message string
}

func (e *GenerationError) Error() string { return e.Message }

// SafetyError indicates a query was rejected by the safety gate before
// execution. Reason is human-readable.
type SafetyError struct {
	Reason string
}

func (e *SafetyError) Error() string { return e.Reason }

// ExecutionError indicates the store failed or timed out while running a
// validated query.
type ExecutionError struct {
	Message string
	Timeout bool
}

func (e *ExecutionError) Error() string { return e.Message }

// TerminalError indicates every fallback tier was exhausted for a request.
type TerminalError struct {
	Message string
}

func (e *TerminalError) Error() string { return e.Message }

// ErrExtraction creates an ExtractionError with a formatted message.
func ErrExtraction(format string, args ...interface{}) *ExtractionError {
	return &ExtractionError{Message: fmt.Sprintf(format, args...)}
}

// ErrGeneration creates a GenerationError with a formatted message.
func ErrGeneration(format string, args ...interface{}) *GenerationError {
	return &GenerationError{Message: fmt.Sprintf(format, args...)}
}

// ErrSafety creates a SafetyError with a formatted reason.
func ErrSafety(format string, args ...interface{}) *SafetyError {
	return &SafetyError{Reason: fmt.Sprintf(format, args...)}
}

// ErrExecution creates an ExecutionError with a formatted message.
func ErrExecution(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecutionTimeout creates an ExecutionError marked as a timeout.
func ErrExecutionTimeout(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Message: fmt.Sprintf(format, args...), Timeout: true}
}

// ErrTerminal creates a TerminalError with a formatted message.
func ErrTerminal(format string, args ...interface{}) *TerminalError {
	return &TerminalError{Message: fmt.Sprintf(format, args...)}
}

// Package errors provides centralized error definitions and error handling utilities
// for depo. It defines domain-specific errors, semantic error types, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ManifestError: errors in the manifest document or its project tree
//   - TaskError: errors from a single synchronization attempt
//   - MirrorError: errors touching a local mirror repository
//   - PublishError: errors talking to the review host
//
// ValidationError represents invalid input or state.
//
// # Usage
//
//	err := errors.NewManifestError("conflicting project paths", nil).WithPaths("a", "a/b")
//
//	var manifestErr *errors.ManifestError
//	if errors.As(err, &manifestErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Manifest-related sentinel errors
var (
	// ErrDuplicateProject indicates two projects resolve to the same local path.
	ErrDuplicateProject = New("duplicated project path")
	// ErrConflictingProjects indicates one project path is nested inside another.
	ErrConflictingProjects = New("conflicting project paths")
	// ErrInvalidToken indicates a malformed project token string.
	ErrInvalidToken = New("invalid project token")
	// ErrUnknownProject indicates a requested project path is not in the manifest.
	ErrUnknownProject = New("unknown project")
)

// Task-related sentinel errors
var (
	// ErrTaskSetup indicates a mirror could not be prepared before the import ran.
	ErrTaskSetup = New("task setup failed")
	// ErrImportFailed indicates the import subprocess exited non-zero.
	ErrImportFailed = New("import failed")
	// ErrProjectStuck indicates a project exhausted its retry budget.
	ErrProjectStuck = New("project stuck")
)

// Mirror-related sentinel errors
var (
	// ErrNotMirror indicates that the directory is not a mirror repository.
	ErrNotMirror = New("not a mirror repository")
	// ErrRefNotFound indicates that a reference could not be resolved.
	ErrRefNotFound = New("reference not found")
)

// Publish-related sentinel errors
var (
	// ErrHostRequest indicates that a review host request failed.
	ErrHostRequest = New("review host request failed")
	// ErrPushFailed indicates that pushing to the review host failed.
	ErrPushFailed = New("push failed")
	// ErrRunLocked indicates another run holds the mirror root lock.
	ErrRunLocked = New("mirror root is locked by another run")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// DepoError is the base interface for all depo errors.
type DepoError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message[: cause]".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ManifestError represents errors in the manifest document.
//
// Example:
//
//	err := errors.NewManifestError("conflicting project paths", errors.ErrConflictingProjects)
//	err = err.WithPaths("libs", "libs/core")
//	fmt.Println(err) // "manifest error [paths=libs, libs/core]: conflicting project paths: ..."
type ManifestError struct {
	baseError
	Paths []string
	Tree  string
}

// NewManifestError creates a new ManifestError.
func NewManifestError(message string, cause error) *ManifestError {
	return &ManifestError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithPaths records the offending local paths.
func (e *ManifestError) WithPaths(paths ...string) *ManifestError {
	e.Paths = append(e.Paths, paths...)
	return e
}

// WithTree records the tree the error was found in.
func (e *ManifestError) WithTree(name string) *ManifestError {
	e.Tree = name
	return e
}

// Error returns the formatted error message.
func (e *ManifestError) Error() string {
	var parts []string
	if e.Tree != "" {
		parts = append(parts, fmt.Sprintf("tree=%s", e.Tree))
	}
	if len(e.Paths) > 0 {
		parts = append(parts, fmt.Sprintf("paths=%s", strings.Join(e.Paths, ", ")))
	}
	return e.format("manifest error", parts)
}

// Is checks if this error matches the target.
func (e *ManifestError) Is(target error) bool {
	if _, ok := target.(*ManifestError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TaskError represents a failed synchronization attempt.
//
// Example:
//
//	err := errors.NewTaskError("git p4 sync exited with status 1", errors.ErrImportFailed)
//	err = err.WithProject("libs/core").WithAttempt(2).WithOutput(stderr)
type TaskError struct {
	baseError
	Project string
	Attempt int
	Output  string
}

// NewTaskError creates a new TaskError. Task errors are retryable.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithProject adds the project local path to the error context.
func (e *TaskError) WithProject(path string) *TaskError {
	e.Project = path
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *TaskError) WithAttempt(n int) *TaskError {
	e.Attempt = n
	return e
}

// WithOutput attaches captured subprocess output.
func (e *TaskError) WithOutput(output string) *TaskError {
	e.Output = output
	return e
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.Project != "" {
		parts = append(parts, fmt.Sprintf("project=%s", e.Project))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	msg := e.format("task error", parts)
	if e.Output != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.Output)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// MirrorError represents errors related to a local mirror repository.
//
// Example:
//
//	err := errors.NewMirrorError("failed to read tracking ref", errors.ErrRefNotFound)
//	err = err.WithMirror("/srv/mirrors/libs/core.git").WithRef("refs/remotes/p4/master")
type MirrorError struct {
	baseError
	Mirror string
	Ref    string
}

// NewMirrorError creates a new MirrorError.
func NewMirrorError(message string, cause error) *MirrorError {
	return &MirrorError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithMirror adds the mirror directory to the error context.
func (e *MirrorError) WithMirror(dir string) *MirrorError {
	e.Mirror = dir
	return e
}

// WithRef adds a reference name to the error context.
func (e *MirrorError) WithRef(ref string) *MirrorError {
	e.Ref = ref
	return e
}

// Error returns the formatted error message.
func (e *MirrorError) Error() string {
	var parts []string
	if e.Ref != "" {
		parts = append(parts, fmt.Sprintf("ref=%s", e.Ref))
	}
	if e.Mirror != "" {
		parts = append(parts, fmt.Sprintf("mirror=%s", e.Mirror))
	}
	return e.format("mirror error", parts)
}

// Is checks if this error matches the target.
func (e *MirrorError) Is(target error) bool {
	if _, ok := target.(*MirrorError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PublishError represents errors talking to the review host.
type PublishError struct {
	baseError
	Project    string
	Host       string
	StatusCode int
}

// NewPublishError creates a new PublishError.
func NewPublishError(message string, cause error) *PublishError {
	return &PublishError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithProject adds the host-side project identifier to the error context.
func (e *PublishError) WithProject(id string) *PublishError {
	e.Project = id
	return e
}

// WithHost adds the review host address to the error context.
func (e *PublishError) WithHost(host string) *PublishError {
	e.Host = host
	return e
}

// WithStatusCode records the HTTP status returned by the host.
func (e *PublishError) WithStatusCode(code int) *PublishError {
	e.StatusCode = code
	e.retryable = code >= 500
	return e
}

// Error returns the formatted error message.
func (e *PublishError) Error() string {
	var parts []string
	if e.Project != "" {
		parts = append(parts, fmt.Sprintf("project=%s", e.Project))
	}
	if e.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", e.Host))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.format("publish error", parts)
}

// Is checks if this error matches the target.
func (e *PublishError) Is(target error) bool {
	if _, ok := target.(*PublishError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("unknown token key").WithField("libs|x").WithValue("x")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a condition that may
// succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var depoErr DepoError
	if As(err, &depoErr) {
		return depoErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var depoErr DepoError
	if As(err, &depoErr) {
		return depoErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement DepoError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var depoErr DepoError
	if As(err, &depoErr) {
		return depoErr.Severity()
	}
	return SeverityError
}

// IsConfigurationError reports whether err should abort a run before any
// task is scheduled.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var manifestErr *ManifestError
	var validation *ValidationError
	return As(err, &manifestErr) || As(err, &validation) || Is(err, ErrUnknownProject)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
